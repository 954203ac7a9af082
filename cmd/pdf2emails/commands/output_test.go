package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf2emails/internal/config"
)

func TestWriteListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteListing(&buf, []string{"jane@example.com", "john@example.com"}))

	want := Marker + "\n" +
		"jane@example.com\n" +
		"john@example.com\n" +
		Marker + "\n" +
		"Found 2 emails\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteListing_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteListing(&buf, nil))
	assert.Equal(t, Marker+"\n"+Marker+"\nFound 0 emails\n", buf.String())
}

func TestWriteEmailsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.txt")
	require.NoError(t, WriteEmailsFile(path, []string{"a@x.io", "b@x.io"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io\nb@x.io\n", string(data))

	err = WriteEmailsFile(filepath.Join(t.TempDir(), "missing", "emails.txt"), nil)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(rootCmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{
		"--gcloud-json-cred", "key.json",
		"--bucket-name", "scans",
		"--workers", "4",
		"--retries", "2",
		"--filter", "dense-blocks",
	}))
	t.Cleanup(func() {
		credentialsFile, bucketName, filterName = "", "", ""
		workers, retries = 1, 0
		for _, name := range []string{"gcloud-json-cred", "bucket-name", "workers", "retries", "filter"} {
			cmd.Flags().Lookup(name).Changed = false
		}
	})

	cfg := config.DefaultConfig()
	cfg.OCR.Provider = "tesseract"
	applyFlagOverrides(cmd, cfg)

	assert.Equal(t, "key.json", cfg.GCloud.CredentialsFile)
	assert.Equal(t, "scans", cfg.GCloud.Bucket)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 2, cfg.Pipeline.Retry.MaxRetries)
	assert.Equal(t, "dense-blocks", cfg.OCR.Filter)
	assert.Equal(t, "tesseract", cfg.OCR.Provider)
	assert.False(t, cfg.Pipeline.SkipFailedPages)
	assert.NoError(t, cfg.Validate())
}

func TestPageNumbers(t *testing.T) {
	assert.Equal(t, []int{1, 3}, pageNumbers([]int{0, 2}))
}

func TestRequiredFlags(t *testing.T) {
	isRequired := func(name string) bool {
		f := rootCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		return len(f.Annotations[cobra.BashCompOneRequiredFlag]) > 0
	}

	assert.True(t, isRequired("pdf"))
	// cloud settings may come from the config file or env instead
	assert.False(t, isRequired("gcloud-json-cred"))
	assert.False(t, isRequired("bucket-name"))

	cfg := config.DefaultConfig()
	cfg.OCR.Provider = "vision"
	cfg.GCloud.CredentialsFile = ""
	applyFlagOverrides(rootCmd, cfg)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}
