package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

func newLibraryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Show a user's library",
	}

	var (
		username string
		asJSON   bool
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "Place unassigned books and print every shelf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			lib, err := a.library.Library(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(lib)
			}
			return printLibrary(cmd.OutOrStdout(), lib)
		},
	}
	show.Flags().StringVarP(&username, "user", "u", "", "Username")
	show.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(show)
	return cmd
}

func printLibrary(out io.Writer, lib *domain.Library) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range lib.Shelves {
		mark := ""
		if s.Overflowing() {
			mark = "  OVERFLOW"
		}
		fmt.Fprintf(w, "%s\t%d/%d pages\t%s%s\n", s.DisplayName, s.UsedPages, s.Capacity, s.ID, mark)
		for _, b := range s.Books {
			fmt.Fprintf(w, "  %s\t%d\t%s\n", b.Title, b.Pages, b.ID)
		}
	}
	if len(lib.Shelves) == 0 {
		fmt.Fprintln(w, "No shelves.")
	}
	return w.Flush()
}

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Add, move, delete and search books",
	}
	var username string
	cmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Username")

	var req service.AddBookRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book to a shelf, or to the first shelf with room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			book, err := a.library.AddBook(cmd.Context(), userID, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) on %s\n", book.Title, book.ID, book.Shelf)
			return nil
		},
	}
	add.Flags().StringVar(&req.Title, "title", "", "Title")
	add.Flags().IntVar(&req.Pages, "pages", 0, "Page count")
	add.Flags().StringVar(&req.ShelfID, "shelf", "", "Shelf ID")

	move := &cobra.Command{
		Use:   "move <book-id> <shelf-id>",
		Short: "Move a book to another shelf",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			book, err := a.library.MoveBook(cmd.Context(), userID, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", book.Title, book.Shelf)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := a.library.DeleteBook(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	var limit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Find books by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			hits, err := a.library.SearchBooks(cmd.Context(), userID, args[0], limit)
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", h.ID, h.Title)
			}
			return nil
		},
	}
	search.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	cmd.AddCommand(add, move, del, search)
	return cmd
}
