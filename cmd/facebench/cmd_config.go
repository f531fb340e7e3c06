// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/pkg/ux"
)

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(configPath, forceInit); err != nil {
		return err
	}
	ux.NewPrinter(cmd.OutOrStdout()).Success("Wrote default configuration to " + configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !cfgFound {
		fmt.Fprintf(out, "# %s not found, showing defaults\n", configPath)
	}
	_, err = out.Write(data)
	return err
}
