package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "tab-overlay/server/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// forbidden lists, per package prefix, the module packages it must not import.
// The tab list engine stays independent of the hub and every transport.
var forbidden = map[string][]string{
	modulePath + "internal/tablist":   {modulePath + "internal/hub", modulePath + "internal/net", modulePath + "internal/config"},
	modulePath + "internal/layout":    {modulePath + "internal/hub", modulePath + "internal/net", modulePath + "internal/config"},
	modulePath + "internal/pingspoof": {modulePath + "internal/hub", modulePath + "internal/net", modulePath + "internal/config"},
	modulePath + "internal/core":      {modulePath + "internal/hub", modulePath + "internal/net", modulePath + "internal/layout"},
	modulePath + "internal/config":    {modulePath + "internal/hub", modulePath + "internal/net"},
}

func violations(pkg packageInfo) []string {
	var found []string
	for prefix, banned := range forbidden {
		if !strings.HasPrefix(pkg.ImportPath, prefix) {
			continue
		}
		for _, imp := range pkg.Imports {
			for _, ban := range banned {
				if imp == ban || strings.HasPrefix(imp, ban+"/") {
					found = append(found, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	return found
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var found []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}
		found = append(found, violations(pkg)...)
	}

	if len(found) > 0 {
		sort.Strings(found)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range found {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}
