package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zzenonn/nntpvault/internal/domain"
)

var lsCmd = &cobra.Command{
	Use:   "ls [remote-path]",
	Short: "List a Folder's direct children",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		remotePath := args[0]

		meta, err := eng.DownloadMetaForPath(context.Background(), remotePath)
		if err != nil {
			fmt.Printf("Error listing %s: %v\n", remotePath, err)
			os.Exit(1)
		}
		if meta == nil || meta.Kind != domain.PathFolder {
			fmt.Printf("Error: %s is not a directory in this vault\n", remotePath)
			os.Exit(1)
		}
		if len(meta.Commands) == 0 {
			fmt.Printf("%s is empty\n", remotePath)
			return
		}

		for _, cmd := range meta.Commands {
			switch cmd.Kind {
			case domain.CommandAddFolder:
				fmt.Printf("  %s/\n", cmd.Name)
			case domain.CommandAddFile:
				fmt.Printf("  %s\t(%d bytes)\n", cmd.Name, cmd.FileSize)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
