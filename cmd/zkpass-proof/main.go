/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main proves a query over a user data document locally and verifies the receipt.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/zkpass"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/backends"
)

const (
	zkvmFlagName  = "zkvm"
	zkvmFlagUsage = "Backend to prove with."
)

var logger = log.New("zkpass/proof-cli")

func main() {
	if err := proofCmd(backends.NewRegistry(), time.Now).Execute(); err != nil {
		logger.Fatalf("Failed to run zkpass-proof: %s", err)
	}
}

func proofCmd(registry *zkvm.Registry, now func() time.Time) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zkpass-proof <user-data.json> <dvr.json>",
		Short: "Prove a query over user data",
		Long: `Prove the query of a data verification request over a user data document, verify the ` +
			`receipt and print its journal. The second file may also hold a bare query.`,
		Args:          cobra.ExactArgs(2), //nolint:gomnd
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := cmd.Flags().GetString(zkvmFlagName)
			if err != nil {
				return err
			}

			userData, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read user data")
			}

			queryText, err := readQuery(args[1])
			if err != nil {
				return err
			}

			b, err := registry.Create(name)
			if err != nil {
				return err
			}

			start := time.Now()

			receipt, err := zkvm.ExecuteQueryAndCreateZkProof(cmd.Context(), b, userData, queryText, now())
			if err != nil {
				return errors.Wrap(err, "prove")
			}

			elapsed := time.Since(start)

			journal, err := b.Verify(receipt)
			if err != nil {
				return errors.Wrap(err, "verify receipt")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "journal: %s\n", journal)
			fmt.Fprintf(cmd.OutOrStdout(), "proved with %s in %s\n", b.Name(), elapsed.Truncate(time.Millisecond))

			return nil
		},
	}

	cmd.Flags().String(zkvmFlagName, backends.Default, zkvmFlagUsage)

	return cmd
}

// readQuery returns the query of a DVR document, or the document itself when it is no DVR.
func readQuery(path string) ([]byte, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read dvr")
	}

	var dvr zkpass.DataVerificationRequest

	if err := json.Unmarshal(doc, &dvr); err == nil && dvr.Query != "" {
		return []byte(dvr.Query), nil
	}

	return doc, nil
}
