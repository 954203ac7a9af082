package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Marker delimits the email listing
const Marker = "-------------------------------------"

// WriteListing prints the emails between marker lines followed by the count
func WriteListing(w io.Writer, emails []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, Marker)
	for _, e := range emails {
		fmt.Fprintln(bw, e)
	}
	fmt.Fprintln(bw, Marker)
	fmt.Fprintf(bw, "Found %d emails\n", len(emails))
	return bw.Flush()
}

// WriteEmailsFile writes the emails to path, one per line
func WriteEmailsFile(path string, emails []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	for _, e := range emails {
		fmt.Fprintln(bw, e)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
