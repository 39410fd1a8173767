package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "proton",
		Short: "Resolve and download Minecraft client versions",
	}

	root.PersistentFlags().StringP("config", "c", "config.yml", "path to config file")

	root.AddCommand(newVersionsCmd())
	root.AddCommand(newDownloadCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
