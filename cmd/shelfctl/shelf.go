package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/service"
)

func newShelfCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "Add, edit and delete shelves",
	}
	var username string
	cmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Username")

	var req service.CreateShelfRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Append a shelf after the last one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			shelf, err := a.library.CreateShelf(cmd.Context(), userID, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s), capacity %d\n", shelf.DisplayName(), shelf.ID, shelf.Capacity)
			return nil
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "Shelf name")
	add.Flags().IntVar(&req.Capacity, "capacity", 0, "Capacity in pages")

	var (
		name     string
		capacity int
	)
	edit := &cobra.Command{
		Use:   "edit <shelf-id>",
		Short: "Rename a shelf or change its capacity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			var req service.EditShelfRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("capacity") {
				req.Capacity = &capacity
			}
			shelf, err := a.library.EditShelf(cmd.Context(), userID, args[0], req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s), capacity %d\n", shelf.DisplayName(), shelf.ID, shelf.Capacity)
			return nil
		},
	}
	edit.Flags().StringVar(&name, "name", "", "New name")
	edit.Flags().IntVar(&capacity, "capacity", 0, "New capacity in pages")

	del := &cobra.Command{
		Use:   "delete <shelf-id>",
		Short: "Delete a shelf and every book on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := a.library.DeleteShelf(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, edit, del)
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change shelf settings",
	}
	var username string
	cmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Username")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the shelf settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			s, err := a.library.Settings(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "numberOfShelves: %d\nshelfCapacity: %d\n", s.NumberOfShelves, s.ShelfCapacity)
			return nil
		},
	}

	var shelves, capacity int
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the shelves created for an empty library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			var req service.UpdateSettingsRequest
			if cmd.Flags().Changed("shelves") {
				req.NumberOfShelves = &shelves
			}
			if cmd.Flags().Changed("capacity") {
				req.ShelfCapacity = &capacity
			}
			s, err := a.library.UpdateSettings(cmd.Context(), userID, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "numberOfShelves: %d\nshelfCapacity: %d\n", s.NumberOfShelves, s.ShelfCapacity)
			return nil
		},
	}
	set.Flags().IntVar(&shelves, "shelves", 0, "Number of shelves")
	set.Flags().IntVar(&capacity, "capacity", 0, "Shelf capacity in pages")

	cmd.AddCommand(show, set)
	return cmd
}
