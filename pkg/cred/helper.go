package cred

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// ConfigLookup resolves a single git config key against a repository. It is
// the shape pkg/gitlib's Repository.ConfigString satisfies, kept as an
// interface here so this package never imports gitlib (and gitlib never
// imports this package back).
type ConfigLookup func(key string) (string, bool, error)

// HelperCredentials asks the repository's configured git credential helper
// for a username/password pair for remoteURL, the consultation step
// original_source/asyncgit/src/sync/cred.rs performs through
// git2::CredentialHelper.config(&config).execute() before ever looking at
// the URL's own userinfo. git2go does not expose CredentialHelper's
// helper-dispatch logic the way git2-rs does, so this drives the same
// underlying mechanism directly: git's own "git credential fill" plumbing
// command, with credential.helper pinned to the value resolved from the
// repository's config (URL-scoped credential.<url>.helper takes precedence
// over the unscoped credential.helper, matching git's own config rules).
// Returns ok=false whenever no helper is configured, the helper produced no
// complete answer, or it could not be invoked at all — any of which means
// the caller should fall back to ExtractFromURL.
func HelperCredentials(ctx context.Context, lookup ConfigLookup, remoteURL string) (BasicAuth, bool) {
	if lookup == nil {
		return BasicAuth{}, false
	}

	helper, ok := resolveHelper(lookup, remoteURL)
	if !ok {
		return BasicAuth{}, false
	}

	return runCredentialFill(ctx, helper, remoteURL)
}

// resolveHelper mirrors git's own lookup order for credential.helper: the
// transport-and-host-scoped override first, the blanket setting second.
func resolveHelper(lookup ConfigLookup, remoteURL string) (string, bool) {
	parsed, err := url.Parse(remoteURL)
	if err == nil && parsed.Host != "" {
		scoped := fmt.Sprintf("credential.%s://%s.helper", parsed.Scheme, parsed.Host)

		if v, ok, err := lookup(scoped); err == nil && ok && v != "" {
			return v, true
		}
	}

	v, ok, err := lookup("credential.helper")
	if err != nil || !ok || v == "" {
		return "", false
	}

	return v, true
}

// runCredentialFill invokes `git credential fill` with the resolved helper
// pinned via -c, feeding it the protocol/host pair the credential-helper
// protocol requires and parsing its username=/password= response lines.
func runCredentialFill(ctx context.Context, helper, remoteURL string) (BasicAuth, bool) {
	parsed, err := url.Parse(remoteURL)
	if err != nil || parsed.Host == "" {
		return BasicAuth{}, false
	}

	cmd := exec.CommandContext(ctx, "git", "-c", "credential.helper="+helper, "credential", "fill")
	cmd.Stdin = strings.NewReader(fmt.Sprintf("protocol=%s\nhost=%s\n\n", parsed.Scheme, parsed.Host))

	out, err := cmd.Output()
	if err != nil {
		return BasicAuth{}, false
	}

	auth := parseCredentialFillOutput(out)

	return auth, auth.IsComplete()
}

func parseCredentialFillOutput(out []byte) BasicAuth {
	var auth BasicAuth

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}

		switch key {
		case "username":
			v := value
			auth.Username = &v
		case "password":
			v := value
			auth.Password = &v
		}
	}

	return auth
}
