package main

import (
	"fmt"
	"slices"

	"github.com/docker/go-units"
	"github.com/rstms/akaifat/image"
	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "show volume information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImage(true, func(img *image.Image) error {
				info, err := img.Info()
				if err != nil {
					return err
				}
				for _, key := range []string{"totalSpace", "freeSpace"} {
					if v, ok := info[key].(int64); ok {
						info[key] = units.BytesSize(float64(v))
					}
				}
				keys := make([]string, 0, len(info))
				for key := range info {
					keys = append(keys, key)
				}
				slices.Sort(keys)
				for _, key := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %v\n", key, info[key])
				}
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(infoCmd())
}
