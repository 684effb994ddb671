package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BenjaminSRussell/paperboy/internal/seeding"
	"github.com/BenjaminSRussell/paperboy/internal/types"
)

func newSeedsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Print the seed URLs for a date range",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags(), map[string]string{
				"seeds.start": "start",
				"seeds.end":   "end",
			})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			seeds, err := seeding.FromConfig(types.SeedConfig{
				Start:    v.GetString("seeds.start"),
				End:      v.GetString("seeds.end"),
				Template: v.GetString("seeds.template"),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, seed := range seeds {
				fmt.Fprintln(out, seed)
			}
			return nil
		},
	}

	cmd.Flags().String("start", seeding.DefaultStart, "first issue date (YYYY-MM-DD)")
	cmd.Flags().String("end", seeding.DefaultEnd, "last issue date (YYYY-MM-DD)")

	return cmd
}
