package main

import (
	"github.com/docker/go-units"
	"github.com/rstms/akaifat/image"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func formatCmd() *cobra.Command {
	var (
		fatType int
		size    string
		label   string
		oem     string
	)
	cmd := &cobra.Command{
		Use:   "format",
		Short: "create a new empty image",
		Long: `
Create the image file, truncated to --size, and write an empty FAT
filesystem covering all of it. Without --fat the table width is chosen
from the size.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, err := imageFilename()
			if err != nil {
				return err
			}
			options, err := imageOptions(false)
			if err != nil {
				return err
			}
			bytes, err := units.RAMInBytes(size)
			if err != nil {
				return err
			}
			img, err := image.CreateImageWithOptions(filename, label, oem, fatType, bytes, options)
			if err != nil {
				return err
			}
			log.Infof("formatted %s (%s)", filename, units.BytesSize(float64(bytes)))
			return img.Close()
		},
	}
	cmd.Flags().IntVar(&fatType, "fat", 0, "FAT type: 12, 16 or 32")
	cmd.Flags().StringVar(&size, "size", "1440k", "image size")
	cmd.Flags().StringVar(&label, "label", "", "volume label")
	cmd.Flags().StringVar(&oem, "oem", "", "OEM name")
	return cmd
}

func init() {
	rootCmd.AddCommand(formatCmd())
}
