package tplsrc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/fleetform/tplsync/internal/snapshot"
	"github.com/fleetform/tplsync/pkg/config"
	"github.com/fleetform/tplsync/pkg/logger"
)

// ErrUnresolvableRef marks a version that the template source does not
// know. Unlike a transport failure it will not heal on retry, so callers
// treat it as fatal.
var ErrUnresolvableRef = errors.New("unresolvable template version")

// FetchError wraps a transport failure that persisted through retries.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch template %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Resolved is a template pinned to concrete content.
type Resolved struct {
	Ref Ref
	// Commit is the resolved commit hash for git-backed sources, empty
	// for plain directories.
	Commit string
	// Files is the template tree with the manifest stripped out.
	Files *snapshot.Snapshot
	// Manifest is the parsed template manifest, nil when the template
	// ships none.
	Manifest *Manifest
}

// Fetcher resolves Refs into snapshots. Hosted repositories are cloned
// into a cache directory keyed by repo and reused across runs.
type Fetcher struct {
	cacheDir string
	retries  int
	backoff  time.Duration
}

// NewFetcher builds a Fetcher caching clones under cacheDir.
func NewFetcher(cacheDir string, cfg config.FetchConfig) *Fetcher {
	return &Fetcher{cacheDir: cacheDir, retries: cfg.Retries, backoff: cfg.Backoff}
}

// Fetch resolves ref to a Resolved snapshot.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) (*Resolved, error) {
	switch ref.Kind {
	case KindLocal:
		return f.fetchLocal(ref)
	case KindGitHub:
		return f.fetchHosted(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %s: unknown source kind", ErrBadRef, ref)
	}
}

func (f *Fetcher) fetchLocal(ref Ref) (*Resolved, error) {
	if ref.Version == "" {
		snap, err := snapshot.FromDir(ref.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read template directory %s: %w", ref.Location, err)
		}
		return finishResolve(ref, "", snap)
	}

	repo, err := git.PlainOpen(ref.Location)
	if err != nil {
		return nil, fmt.Errorf("template %s is not a git repository: %w", ref.Location, err)
	}
	hash, err := resolveVersion(repo, ref.Version)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotCommit(repo, hash)
	if err != nil {
		return nil, err
	}
	return finishResolve(ref, hash.String(), snap)
}

func (f *Fetcher) fetchHosted(ctx context.Context, ref Ref) (*Resolved, error) {
	targetPath := filepath.Join(f.cacheDir, cacheKey(ref.Location))
	if err := os.MkdirAll(f.cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}

	repo, err := f.openOrClone(ctx, ref, targetPath)
	if err != nil {
		return nil, err
	}
	hash, err := resolveVersion(repo, ref.Version)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotCommit(repo, hash)
	if err != nil {
		return nil, err
	}
	return finishResolve(ref, hash.String(), snap)
}

// openOrClone reuses a cached clone when possible, refreshing its refs;
// transport failures retry with exponential backoff.
func (f *Fetcher) openOrClone(ctx context.Context, ref Ref, targetPath string) (*git.Repository, error) {
	if repo, err := git.PlainOpen(targetPath); err == nil {
		if err := f.withRetry(ctx, ref, func() error { return fetchLatest(ctx, repo) }); err == nil {
			return repo, nil
		}
		logger.Debug("cached template clone is stale, recloning",
			logger.String("path", targetPath))
		_ = os.RemoveAll(targetPath)
	}

	_ = os.RemoveAll(targetPath)
	cloneURL := fmt.Sprintf("https://github.com/%s.git", strings.TrimSuffix(ref.Location, ".git"))

	var repo *git.Repository
	err := f.withRetry(ctx, ref, func() error {
		_ = os.RemoveAll(targetPath)
		var cloneErr error
		logger.Info("cloning template",
			logger.String("repo", ref.Location),
			logger.String("version", ref.Version))
		repo, cloneErr = git.PlainCloneContext(ctx, targetPath, true, &git.CloneOptions{
			URL:  cloneURL,
			Tags: git.AllTags,
		})
		return cloneErr
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (f *Fetcher) withRetry(ctx context.Context, ref Ref, op func() error) error {
	var err error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := f.backoff << (attempt - 1)
			logger.Debug("retrying template fetch",
				logger.Int("attempt", attempt),
				logger.String("delay", delay.String()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return &FetchError{Ref: ref.String(), Err: err}
}

func fetchLatest(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.AllTags,
		Force:      true,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// resolveVersion maps a branch, tag, or commit hash to a concrete commit.
func resolveVersion(repo *git.Repository, version string) (plumbing.Hash, error) {
	if hash, err := repo.ResolveRevision(plumbing.Revision(version)); err == nil {
		return *hash, nil
	}

	candidates := []plumbing.ReferenceName{
		plumbing.ReferenceName(version),
		plumbing.NewBranchReferenceName(version),
		plumbing.NewRemoteReferenceName("origin", version),
		plumbing.NewTagReferenceName(version),
	}
	for _, candidate := range candidates {
		if reference, err := repo.Reference(candidate, true); err == nil {
			return reference.Hash(), nil
		}
	}

	if len(version) == 40 && isHex(version) {
		return plumbing.NewHash(version), nil
	}

	return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrUnresolvableRef, version)
}

// snapshotCommit reads a commit's tree into a snapshot without touching
// any worktree.
func snapshotCommit(repo *git.Repository, hash plumbing.Hash) (*snapshot.Snapshot, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s not present", ErrUnresolvableRef, hash)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree for %s: %w", hash, err)
	}

	files := make(map[string][]byte)
	err = tree.Files().ForEach(func(file *object.File) error {
		if file.Mode != filemode.Regular && file.Mode != filemode.Executable {
			return nil
		}
		contents, err := file.Contents()
		if err != nil {
			return err
		}
		files[file.Name] = []byte(contents)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tree for %s: %w", hash, err)
	}
	return snapshot.New(files), nil
}

// finishResolve parses and strips the manifest from the snapshot.
func finishResolve(ref Ref, commit string, snap *snapshot.Snapshot) (*Resolved, error) {
	manifest, err := LoadManifest(snap)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		files := make(map[string][]byte)
		for _, p := range snap.Paths() {
			if p == ManifestName {
				continue
			}
			f, _ := snap.Get(p)
			files[p] = f.Data
		}
		snap = snapshot.New(files)
	}
	return &Resolved{Ref: ref, Commit: commit, Files: snap, Manifest: manifest}, nil
}

func cacheKey(location string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(location)))
	return hex.EncodeToString(sum[:])[:32]
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
