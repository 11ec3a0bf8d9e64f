package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zzenonn/nntpvault/internal/domain"
)

var quiet bool

var putCmd = &cobra.Command{
	Use:   "put [local-path] [remote-path]",
	Short: "Upload a local file into the vault",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		localPath, remotePath := args[0], args[1]

		if err := eng.UploadFile(context.Background(), localPath, remotePath, quiet); err != nil {
			fmt.Printf("Error uploading file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("File uploaded successfully: %s -> %s\n", localPath, remotePath)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [remote-path] [local-path]",
	Short: "Download a file from the vault, repairing from parity if needed",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		remotePath, localPath := args[0], args[1]

		meta, err := eng.DownloadMetaForPath(context.Background(), remotePath)
		if err != nil {
			fmt.Printf("Error resolving %s: %v\n", remotePath, err)
			os.Exit(1)
		}
		if meta == nil || meta.Kind != domain.PathFile {
			fmt.Printf("Error: %s is not a file in this vault\n", remotePath)
			os.Exit(1)
		}

		if stat, err := os.Stat(localPath); err == nil && stat.IsDir() {
			localPath = filepath.Join(localPath, filepath.Base(remotePath))
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			fmt.Printf("Error creating output directory: %v\n", err)
			os.Exit(1)
		}

		out, err := os.Create(localPath)
		if err != nil {
			fmt.Printf("Error creating output file: %v\n", err)
			os.Exit(1)
		}
		defer out.Close()

		ctx := context.Background()
		for _, cmd := range meta.Commands {
			if cmd.Kind != domain.CommandAddBlock {
				continue
			}
			id := eng.Generator().RawOrParityID(cmd.BlockHash)
			plain, err := eng.DownloadChunk(ctx, id, true)
			if err != nil {
				fmt.Printf("Error downloading block at offset %d: %v\n", cmd.BlockStart, err)
				os.Exit(1)
			}
			if _, err := out.Write(plain); err != nil {
				fmt.Printf("Error writing local file: %v\n", err)
				os.Exit(1)
			}
		}

		fmt.Printf("File downloaded successfully: %s -> %s\n", remotePath, localPath)
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir [remote-path]",
	Short: "Create a directory (and any missing ancestors) in the vault",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		remotePath := args[0]
		if err := eng.NewDirectory(context.Background(), remotePath); err != nil {
			fmt.Printf("Error creating directory: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Directory created: %s\n", remotePath)
	},
}

var flushAssurancesCmd = &cobra.Command{
	Use:   "flush-assurances",
	Short: "Publish every not-yet-published assurance-log fact",
	Run: func(cmd *cobra.Command, args []string) {
		if err := eng.FlushAssurances(context.Background()); err != nil {
			fmt.Printf("Error flushing assurances: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Assurances flushed")
	},
}

var flushParityCmd = &cobra.Command{
	Use:   "flush-parity",
	Short: "Force-close every open parity collection regardless of size",
	Run: func(cmd *cobra.Command, args []string) {
		if err := eng.ForceFlushParity(context.Background()); err != nil {
			fmt.Printf("Error flushing parity: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Parity flushed")
	},
}

var flushMetaCmd = &cobra.Command{
	Use:   "flush-meta",
	Short: "Write every path's queued meta commands to its remote log",
	Run: func(cmd *cobra.Command, args []string) {
		if err := eng.FlushMeta(context.Background()); err != nil {
			fmt.Printf("Error flushing meta: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Meta flushed")
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Fetch the remote assurance log into the local catalog",
	Run: func(cmd *cobra.Command, args []string) {
		if err := eng.Load(context.Background()); err != nil {
			fmt.Printf("Error loading assurance log: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Assurance log loaded")
	},
}

func init() {
	putCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress bar")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(flushAssurancesCmd)
	rootCmd.AddCommand(flushParityCmd)
	rootCmd.AddCommand(flushMetaCmd)
	rootCmd.AddCommand(loadCmd)
}
