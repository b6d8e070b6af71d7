package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Export and import libraries as YAML",
	}
	var username string
	cmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Username")

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the library as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			lib, err := a.library.Library(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				out = f
			}
			return catalog.FromLibrary(lib, username, time.Now()).Encode(out)
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	importCmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Add the shelves and books of a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			c, err := catalog.Decode(in)
			if err != nil {
				return err
			}
			report, err := catalog.Import(cmd.Context(), a.library, userID, c)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d shelves and %d books\n", report.ShelvesCreated, report.BooksAdded)
			for _, s := range report.Skipped {
				fmt.Fprintf(out, "Skipped %q on %q: %s\n", s.Title, s.Shelf, s.Reason)
			}
			return nil
		},
	}

	cmd.AddCommand(export, importCmd)
	return cmd
}
