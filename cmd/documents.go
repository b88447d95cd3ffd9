package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/glpi"
)

var (
	documentName   string
	documentParams []string
	downloadDest   string
	overwrite      bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file as a GLPI document",
	Long: `Upload a file as a GLPI document. Extra document fields are passed with
--param, for instance --param entities_id=3. When GLPI refuses the file, the
half created document is purged again.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		extra, err := parseParams(documentParams)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		doc := glpi.Document{
			Name:     documentName,
			FileName: filepath.Base(args[0]),
			Extra:    extra,
		}
		result, err := client.UploadDocument(cmd.Context(), doc, f)
		if err != nil {
			return err
		}

		p := newPrinter(cmd.OutOrStdout())
		if p.json() {
			return p.JSON(result)
		}
		p.Success("Uploaded %s as document %d", doc.FileName, result.ID)
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <document-id>",
	Short: "Download the file of a GLPI document",
	Long: `Download the file of a GLPI document. The file is written next to its
destination under a temporary name and renamed once complete, so an
interrupted download never leaves a truncated file behind.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		dest := downloadDest
		if dest == "" || isDir(dest) {
			doc, err := client.GetItem(ctx, "Document", id, nil)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("document %d not found", id)
			}
			name, _ := doc["filename"].(string)
			if name == "" {
				name = fmt.Sprintf("document-%d", id)
			}
			dest = filepath.Join(downloadDest, filepath.Base(name))
		}

		if !overwrite {
			if _, err := os.Stat(dest); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
			}
		}

		n, err := downloadTo(cmd, id, dest)
		if err != nil {
			return err
		}

		newPrinter(cmd.OutOrStdout()).Success("Downloaded document %d to %s (%d bytes)", id, dest, n)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&documentName, "name", "", "document name (default: the file name)")
	uploadCmd.Flags().StringArrayVarP(&documentParams, "param", "p", nil, "extra document field as key=value (repeatable)")

	downloadCmd.Flags().StringVarP(&downloadDest, "dest", "d", "", "destination file or directory (default: the document file name)")
	downloadCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(uploadCmd, downloadCmd)
}

func downloadTo(cmd *cobra.Command, id int, dest string) (int64, error) {
	tmp := fmt.Sprintf("%s.%s.part", dest, uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	n, err := client.DownloadDocument(cmd.Context(), id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
