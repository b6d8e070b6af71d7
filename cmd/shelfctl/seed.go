package main

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

var (
	seedAdjectives = []string{"Тихий", "Silent", "Зимний", "Golden", "Последний", "Hidden", "Северный", "Crimson", "Древний", "Broken"}
	seedNouns      = []string{"Дом", "River", "Сад", "Harbor", "Путь", "Engine", "Берег", "Archive", "Город", "Lantern"}
)

// newSeedCmd fills a library with generated books, which is handy when trying
// out placement and overflow by hand.
func newSeedCmd(a *app) *cobra.Command {
	var (
		username string
		count    int
		maxPages int
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add generated books to a library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 || maxPages <= 0 {
				return fmt.Errorf("--books and --max-pages must be positive")
			}
			if maxPages > domain.MaxPages {
				return fmt.Errorf("--max-pages must not exceed %d", domain.MaxPages)
			}
			userID, err := a.userID(cmd.Context(), username)
			if err != nil {
				return err
			}
			// Shelves are initialized on first view; placing into them needs them to exist.
			if _, err := a.library.Library(cmd.Context(), userID); err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
			added, rejected := 0, 0
			for i := range count {
				title := strings.Join([]string{
					seedAdjectives[rng.IntN(len(seedAdjectives))],
					seedNouns[rng.IntN(len(seedNouns))],
					fmt.Sprint(i + 1),
				}, " ")
				req := service.AddBookRequest{Title: title, Pages: 1 + rng.IntN(maxPages)}

				_, err := a.library.AddBook(cmd.Context(), userID, req)
				switch {
				case err == nil:
					added++
				case domainerrors.Is(err, domainerrors.ErrNoFittingShelf):
					rejected++
				default:
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d books, %d did not fit\n", added, rejected)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "Username")
	cmd.Flags().IntVar(&count, "books", 20, "Number of books to generate")
	cmd.Flags().IntVar(&maxPages, "max-pages", 5, "Largest page count")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}
