package main

import (
	"fmt"
	"strings"

	"github.com/rstms/akaifat"
	"github.com/rstms/akaifat/image"
	"github.com/spf13/cobra"
)

var attrNames = map[byte]akaifat.DirectoryAttr{
	'r': akaifat.AttrReadOnly,
	'h': akaifat.AttrHidden,
	's': akaifat.AttrSystem,
	'a': akaifat.AttrArchive,
}

// parseAttrChanges reads attrib style changes such as "+h" or "-rs".
func parseAttrChanges(args []string) (map[akaifat.DirectoryAttr]bool, error) {
	changes := make(map[akaifat.DirectoryAttr]bool)
	for _, arg := range args {
		if len(arg) < 2 || (arg[0] != '+' && arg[0] != '-') {
			return nil, fmt.Errorf("invalid attribute change %q", arg)
		}
		for _, c := range []byte(strings.ToLower(arg[1:])) {
			attr, ok := attrNames[c]
			if !ok {
				return nil, fmt.Errorf("unknown attribute %q in %q", c, arg)
			}
			changes[attr] = arg[0] == '+'
		}
	}
	return changes, nil
}

func attrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attr PATH [+-rhsa]...",
		Short: "show or change entry attributes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAttrChanges(args[1:])
			if err != nil {
				return err
			}
			return withImage(len(changes) == 0, func(img *image.Image) error {
				for attr, state := range changes {
					if err := img.SetAttr(args[0], attr, state); err != nil {
						return err
					}
				}
				attr, err := img.GetAttr(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", formatAttr(attr), args[0])
				return nil
			})
		},
	}
}

func formatAttr(attr akaifat.DirectoryAttr) string {
	var sb strings.Builder
	for _, c := range []byte("rhsa") {
		if attr&attrNames[c] != 0 {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(attrCmd())
}
