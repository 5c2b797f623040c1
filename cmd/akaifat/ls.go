package main

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/rstms/akaifat/image"
	"github.com/spf13/cobra"
)

func lsCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls [DIR]",
		Short: "list directory contents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) > 0 {
				dir = args[0]
			}
			return withImage(true, func(img *image.Image) error {
				var records []image.FileRecord
				var err error
				if recursive {
					records, err = img.ScanFiles()
				} else {
					records, err = img.List(dir)
				}
				if err != nil {
					return err
				}
				for _, record := range records {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %8s %s\n",
						attrString(record), record.ShortName, sizeString(record), record.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list the whole image")
	return cmd
}

func attrString(record image.FileRecord) string {
	flags := []byte("-----")
	if record.Dir {
		flags[0] = 'd'
	}
	if record.ReadOnly {
		flags[1] = 'r'
	}
	if record.Hidden {
		flags[2] = 'h'
	}
	if record.System {
		flags[3] = 's'
	}
	if record.Archive {
		flags[4] = 'a'
	}
	return string(flags)
}

func sizeString(record image.FileRecord) string {
	if record.Dir {
		return "<DIR>"
	}
	return units.HumanSize(float64(record.Size))
}

func init() {
	rootCmd.AddCommand(lsCmd())
}
