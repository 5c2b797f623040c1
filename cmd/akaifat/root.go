package main

import (
	"fmt"
	"os"

	"github.com/rstms/akaifat/fat"
	"github.com/rstms/akaifat/image"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "akaifat",
	Short: "read and write FAT disk images",
	Long: `
Create, list and modify FAT12, FAT16 and FAT32 disk images without
mounting them. With --names akai, entry names use the 16.3 layout of
Akai samplers, where characters 9 to 16 of the name live in the
directory record's create time fields.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.akaifat.yaml)")
	rootCmd.PersistentFlags().StringP("image", "i", "", "disk image file")
	viper.BindPFlag("image", rootCmd.PersistentFlags().Lookup("image"))
	rootCmd.PersistentFlags().StringP("names", "n", "standard", "entry name format: standard or akai")
	viper.BindPFlag("names", rootCmd.PersistentFlags().Lookup("names"))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".akaifat")
	}
	viper.SetEnvPrefix("akaifat")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}

func imageOptions(readOnly bool) (image.Options, error) {
	names, err := fat.ParseNameFormat(viper.GetString("names"))
	if err != nil {
		return image.Options{}, err
	}
	return image.Options{Names: names, ReadOnly: readOnly}, nil
}

func imageFilename() (string, error) {
	filename := viper.GetString("image")
	if filename == "" {
		return "", fmt.Errorf("no image file; use --image or AKAIFAT_IMAGE")
	}
	return filename, nil
}

// withImage opens the configured image, runs fn and closes the image,
// which writes any changes fn made.
func withImage(readOnly bool, fn func(*image.Image) error) error {
	filename, err := imageFilename()
	if err != nil {
		return err
	}
	options, err := imageOptions(readOnly)
	if err != nil {
		return err
	}
	img, err := image.OpenImageWithOptions(filename, options)
	if err != nil {
		return err
	}
	err = fn(img)
	cerr := img.Close()
	if err != nil {
		return err
	}
	return cerr
}
