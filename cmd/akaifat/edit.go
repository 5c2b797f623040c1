package main

import (
	"os"
	"path"
	"path/filepath"

	"github.com/rstms/akaifat/image"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir DIR...",
		Short: "create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImage(false, func(img *image.Image) error {
				for _, dir := range args {
					if err := img.Mkdir(dir); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put SRC [DST]",
		Short: "copy a host file or directory tree into the image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			dst := filepath.Base(src)
			if len(args) > 1 {
				dst = args[1]
			}
			info, err := os.Stat(src)
			if err != nil {
				return err
			}
			return withImage(false, func(img *image.Image) error {
				isDir, err := img.IsDir(dst)
				if err != nil {
					return err
				}
				if isDir && !info.IsDir() {
					dst = path.Join(dst, filepath.Base(src))
				}
				if info.IsDir() {
					if !isDir {
						if err := img.Mkdir(dst); err != nil {
							return err
						}
					}
					return img.ImportTo(src, dst)
				}
				log.Debugf("put %s -> %s", src, dst)
				return img.AddFile(dst, src)
			})
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get SRC [DST]",
		Short: "copy a file out of the image",
		Long: `
Copy a file from the image to the host. DST defaults to the file's
name in the current directory; "-" writes to standard output.
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			dst := path.Base(src)
			if len(args) > 1 {
				dst = args[1]
			}
			return withImage(true, func(img *image.Image) error {
				if dst == "-" {
					data, err := img.ReadFile(src)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if info, err := os.Stat(dst); err == nil && info.IsDir() {
					dst = filepath.Join(dst, path.Base(src))
				}
				return img.Export(src, dst)
			})
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH...",
		Short: "remove files, or directories with their contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImage(false, func(img *image.Image) error {
				for _, name := range args {
					if err := img.Remove(name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv SRC DST",
		Short: "rename or move an entry",
		Long: `
Move SRC to DST. When DST is an existing directory SRC keeps its name
inside it; otherwise SRC is renamed to the last element of DST.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImage(false, func(img *image.Image) error {
				return img.Move(args[0], args[1])
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(mkdirCmd())
	rootCmd.AddCommand(putCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(mvCmd())
}
