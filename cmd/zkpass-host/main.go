/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main is the zkPass proof host. It runs inside the enclave, serves proof requests
// arriving over the host channel and reaches the outside world through the relay util channel.
package main

import (
	"github.com/spf13/cobra"

	"github.com/gl-zkPass/zkpass-sdk-sub001/cmd/zkpass-host/startcmd"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use: "zkpass-host",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	logger := log.New("zkpass/host-cli")

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf(err.Error())
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run zkpass-host: %s", err)
	}
}
