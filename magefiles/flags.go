// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"os"
	"strings"
)

// targetArgs are the arguments given after the target name, e.g.
// "mage run serve --backend sqlite" leaves ["serve", "--backend", "sqlite"]
// here and ["mage", "run"] in os.Args. Mage rejects unknown named flags,
// so they are removed before its parser sees them.
var targetArgs []string

func init() {
	os.Args, targetArgs = splitTargetArgs(os.Args)
}

// splitTargetArgs cuts args after the first target name. Arguments before
// it that start with "-" belong to mage itself; a bare "--" ends the
// search without a target.
func splitTargetArgs(args []string) (mageArgs, rest []string) {
	for i := 1; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		if a == "" || strings.HasPrefix(a, "-") {
			continue
		}
		if i+1 < len(args) {
			return args[:i+1], args[i+1:]
		}
		break
	}
	return args, nil
}

// parseTargetFlags parses targetArgs into fs. It reports false when the
// target should stop without error, which is the case after --help.
func parseTargetFlags(fs *flag.FlagSet) (bool, error) {
	err := fs.Parse(targetArgs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, flag.ErrHelp):
		return false, nil
	default:
		return false, err
	}
}
