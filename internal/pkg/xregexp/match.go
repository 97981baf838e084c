package xregexp

import (
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	cacheSize = 1024

	// MatchTimeout bounds a single match so a pathological pattern cannot stall a caller.
	MatchTimeout = 200 * time.Millisecond
)

type patternKey struct {
	pattern string
	options regexp2.RegexOptions
}

type patternCache struct {
	regex *regexp2.Regexp
	err   error
}

var globalCache, _ = lru.New[patternKey, *patternCache](cacheSize)

// Compile compiles a .NET-syntax regular expression. Results, failures included, are
// memoized per pattern and option set.
func Compile(pattern string, options regexp2.RegexOptions) (*regexp2.Regexp, error) {
	cached := getOrCreatePattern(pattern, options)

	return cached.regex, cached.err
}

// Validate reports whether pattern is a syntactically valid expression.
func Validate(pattern string) error {
	_, err := Compile(pattern, regexp2.None)

	return err
}

// MatchString compiles pattern and matches it against str.
func MatchString(pattern string, str string, options regexp2.RegexOptions) (bool, error) {
	regex, err := Compile(pattern, options)
	if err != nil {
		return false, err
	}

	return regex.MatchString(str)
}

// Escape escapes the metacharacters of s the way .NET Regex.Escape does.
func Escape(s string) string {
	return regexp2.Escape(s)
}

func getOrCreatePattern(pattern string, options regexp2.RegexOptions) *patternCache {
	key := patternKey{pattern: pattern, options: options}

	if cached, ok := globalCache.Get(key); ok {
		return cached
	}

	cached := &patternCache{}

	compiled, err := regexp2.Compile(pattern, options)
	if err != nil {
		cached.err = err
	} else {
		compiled.MatchTimeout = MatchTimeout
		cached.regex = compiled
	}

	globalCache.Add(key, cached)

	return cached
}

// Purge drops every memoized pattern.
func Purge() {
	globalCache.Purge()
}
