package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/policy"
)

// errQueryRejected signals a validation failure; main maps it to exit code 1
// without printing a second error line.
var errQueryRejected = errors.New("query rejected")

// newCheckCmd runs the safety validator offline: useful for CI checks on
// saved dashboard queries and for debugging rejections.
func newCheckCmd() *cobra.Command {
	var policyFile string
	var maxBytes int

	cmd := &cobra.Command{
		Use:   "check [sql]",
		Short: "Validate a query without executing it",
		Long:  "Runs the safety validator on the given SQL (or stdin) and prints the verdict.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sql string
			if len(args) == 1 {
				sql = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				sql = string(data)
			}

			var extraDeny []string
			if policyFile != "" {
				pol, err := policy.LoadFromFile(policyFile)
				if err != nil {
					return fmt.Errorf("loading policy: %w", err)
				}
				extraDeny = pol.DenyKeywords
			}

			out := domain.NewValidator(maxBytes, extraDeny).Validate(sql)
			if !out.Accepted {
				fmt.Fprintf(cmd.OutOrStdout(), "REJECTED: %s\n", out.RejectionReason)
				return errQueryRejected
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ACCEPTED")
			if sanitized := out.SanitizedSQL; sanitized != strings.TrimSpace(sql) {
				fmt.Fprintf(cmd.OutOrStdout(), "sanitized:\n%s\n", sanitized)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFile, "policy-file", "", "path to a YAML policy file")
	cmd.Flags().IntVar(&maxBytes, "max-query-bytes", 1048576, "query byte ceiling")
	return cmd
}
