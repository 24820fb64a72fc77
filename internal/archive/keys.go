package archive

import "fmt"

// ChapterKey builds the archive-tier object key for one chapter body.
func ChapterKey(storyID string, number int) string {
	return fmt.Sprintf("%s/chap_%d.gz", storyID, number)
}
