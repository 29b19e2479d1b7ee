package objectclient

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DocumentKey is where an uploaded original is kept.
func DocumentKey(docID, filename string) string {
	filename = strings.TrimSpace(filepath.Base(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("documents", docID, filename)
}

// ScrapedKey names the text file a scraped page is saved as.
func ScrapedKey(at time.Time) string {
	return path.Join("scraped", "website_content_"+at.Format("20060102_150405")+".txt")
}
