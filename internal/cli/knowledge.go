package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/braincargo/brainblog/internal/services/knowledge"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/spf13/cobra"
)

func manifestDir() string {
	if dir := os.Getenv("KNOWLEDGE_DIR"); dir != "" {
		return dir
	}
	return provider.DefaultKnowledgeDir
}

func NewKnowledgeCmd() *cobra.Command {
	knowledgeCmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Upload knowledge files that ground generation",
		Long: `Upload the documents the providers use for retrieval. The manifests
written here are read back by the OpenAI and Anthropic providers at startup.`,
	}

	knowledgeCmd.AddCommand(newKnowledgeOpenAICmd())
	knowledgeCmd.AddCommand(newKnowledgeAnthropicCmd())

	return knowledgeCmd
}

func newKnowledgeOpenAICmd() *cobra.Command {
	var dir, name, storeID, outDir, baseURL string

	cmd := &cobra.Command{
		Use:   "openai",
		Short: "Upload a directory into an OpenAI vector store",
		Example: `  blogctl knowledge openai --dir docs/
  blogctl knowledge openai --dir docs/ --store-id vs_abc123`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := knowledge.GatherFiles(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no files found to upload")
			}

			opts := []knowledge.OpenAIOption{}
			if baseURL != "" {
				opts = append(opts, knowledge.WithOpenAIBaseURL(baseURL))
			}
			uploader, err := knowledge.NewOpenAIUploader(os.Getenv("OPENAI_API_KEY"), opts...)
			if err != nil {
				return err
			}

			id, err := uploader.ResolveStore(cmd.Context(), name, storeID)
			if err != nil {
				return fmt.Errorf("could not access vector stores: %w", err)
			}
			manifest, err := uploader.Upload(cmd.Context(), id, files)
			if err != nil {
				return err
			}

			path, err := knowledge.WriteOpenAIManifest(outDir, manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d files to vector store %s\nManifest: %s\n", len(manifest.FileIDs), id, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of files to upload")
	cmd.Flags().StringVar(&name, "name", knowledge.DefaultStoreName, "Vector store to create or reuse")
	cmd.Flags().StringVar(&storeID, "store-id", "", "Existing vector store ID (vs_...)")
	cmd.Flags().StringVar(&outDir, "manifest-dir", manifestDir(), "Where to write the manifest")
	cmd.Flags().StringVar(&baseURL, "api-base", "", "Override the OpenAI API base URL")
	_ = cmd.Flags().MarkHidden("api-base")
	_ = cmd.MarkFlagRequired("dir")
	cmd.MarkFlagsMutuallyExclusive("name", "store-id")

	return cmd
}

func newKnowledgeAnthropicCmd() *cobra.Command {
	var dir, file, outDir, baseURL string

	cmd := &cobra.Command{
		Use:   "anthropic",
		Short: "Upload files through the Anthropic files API",
		Example: `  blogctl knowledge anthropic --dir docs/
  blogctl knowledge anthropic --file docs/whitepaper.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if dir != "" {
				var err error
				if files, err = knowledge.GatherFiles(dir); err != nil {
					return err
				}
			} else {
				info, err := os.Stat(file)
				if err != nil || !info.Mode().IsRegular() {
					return fmt.Errorf("%q is not a file", file)
				}
				files = []string{file}
			}
			if len(files) == 0 {
				return errors.New("no files found to upload")
			}

			opts := []knowledge.AnthropicOption{}
			if baseURL != "" {
				opts = append(opts, knowledge.WithAnthropicBaseURL(baseURL))
			}
			uploader, err := knowledge.NewAnthropicUploader(os.Getenv("ANTHROPIC_API_KEY"), opts...)
			if err != nil {
				return err
			}

			manifest, err := uploader.Upload(cmd.Context(), files)
			if err != nil {
				return err
			}
			path, err := knowledge.WriteAnthropicManifest(outDir, manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d of %d files\nManifest: %s\n", manifest.TotalFiles, len(files), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of files to upload")
	cmd.Flags().StringVar(&file, "file", "", "Single file to upload")
	cmd.Flags().StringVar(&outDir, "manifest-dir", manifestDir(), "Where to write the manifest")
	cmd.Flags().StringVar(&baseURL, "api-base", "", "Override the Anthropic API base URL")
	_ = cmd.Flags().MarkHidden("api-base")
	cmd.MarkFlagsMutuallyExclusive("dir", "file")
	cmd.MarkFlagsOneRequired("dir", "file")

	return cmd
}
