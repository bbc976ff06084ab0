package cache

import (
	"crypto/md5" //nolint:gosec // short non-cryptographic key digest
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// corporateSuffixes are stripped from normalized subjects, longest forms first.
// At most one is removed.
var corporateSuffixes = []string{
	"_corporation", "_incorporated", "_limited",
	"_corp", "_inc", "_llc", "_ltd", "_plc",
	"_the", "_group", "_company", "_co",
}

// NormalizeSubject lower-cases name, collapses non-alphanumeric runs to a
// single underscore and drops one trailing corporate suffix.
func NormalizeSubject(name string) string {
	key := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	key = strings.Trim(key, "_")
	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(key, suffix) {
			key = strings.TrimRight(strings.TrimSuffix(key, suffix), "_")
			break
		}
	}
	return key
}

// PathsDigest is a short digest of the sorted, concatenated paths.
func PathsDigest(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	sum := md5.Sum([]byte(strings.Join(sorted, ""))) //nolint:gosec
	return hex.EncodeToString(sum[:])[:8]
}

// Fingerprint is the cache key for subject analyzed over paths. Path order
// does not matter.
func Fingerprint(subject string, paths []string) string {
	return NormalizeSubject(subject) + "_" + PathsDigest(paths)
}
