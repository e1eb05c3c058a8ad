package gates

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// SecretFinding is one high-confidence secret match.
type SecretFinding struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Snippet string `json:"snippet"`
}

// secretPatterns is the high-confidence pattern set: bounded,
// default-safe regexes rather than a generic entropy scanner, so a hit
// is close to certainly a real secret.
var secretPatterns = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)\b(openai|anthropic|api|secret|token|key)\b[^\n]{0,40}[:=]\s*['"]?sk-[a-zA-Z0-9]{20,}`), "openai_like_secret"},
	{regexp.MustCompile(`(?i)\baws_secret_access_key\b\s*[:=]\s*['"]?[A-Za-z0-9/+=]{30,}`), "aws_secret_access_key"},
	{regexp.MustCompile(`-----BEGIN[A-Z ]*PRIVATE KEY-----`), "private_key_block"},
	{regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`), "github_token"},
	{regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`), "slack_token"},
}

var excludedPrefixes = []string{"node_modules/", "logs/", "data/training-data/"}
var excludedSuffixes = []string{".png", ".jpg", ".pdf"}

// candidateFiles enumerates repo_root's tracked files via `git ls-files`,
// excluding .env, paths under excludedPrefixes, and files ending in
// excludedSuffixes; other hidden files are scanned.
func candidateFiles(ctx context.Context, repoRoot string) []string {
	cmd := exec.CommandContext(ctx, "git", "ls-files")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		rel := strings.TrimSpace(line)
		if rel == "" || rel == ".env" {
			continue
		}
		skip := false
		for _, p := range excludedPrefixes {
			if strings.HasPrefix(rel, p) {
				skip = true
				break
			}
		}
		if !skip {
			for _, s := range excludedSuffixes {
				if strings.HasSuffix(rel, s) {
					skip = true
					break
				}
			}
		}
		if skip {
			continue
		}
		files = append(files, rel)
	}
	return files
}

// ScanSecrets reads every tracked file as UTF-8 text (unreadable files
// are silently skipped) and matches it against secretPatterns.
func ScanSecrets(ctx context.Context, repoRoot string) []SecretFinding {
	var findings []SecretFinding
	for _, rel := range candidateFiles(ctx, repoRoot) {
		data, err := os.ReadFile(repoRoot + "/" + rel)
		if err != nil {
			continue
		}
		text := string(data)
		for _, p := range secretPatterns {
			for _, m := range p.re.FindAllString(text, -1) {
				snippet := m
				if len(snippet) > 120 {
					snippet = snippet[:120]
				}
				findings = append(findings, SecretFinding{Path: rel, Kind: p.kind, Snippet: snippet})
			}
		}
	}
	return findings
}
