package tools

import (
	"net/url"
	"strings"
)

// RedactedLogURLs prepares addresses to be logged stripping passwords from
// them. Plain host:port addresses are returned as is.
func RedactedLogURLs(urls ...string) []string {
	result := make([]string, 0, len(urls))
	for _, input := range urls {
		var cleanedParts []string
		for _, part := range strings.Split(input, ",") {
			part = strings.TrimSpace(part)
			if !strings.Contains(part, "://") {
				cleanedParts = append(cleanedParts, part)
				continue
			}
			parsedURL, err := url.Parse(part)
			if err != nil {
				cleanedParts = append(cleanedParts, "<invalid_url>")
				continue
			}
			cleanedParts = append(cleanedParts, parsedURL.Redacted())
		}
		result = append(result, strings.Join(cleanedParts, ","))
	}
	return result
}
