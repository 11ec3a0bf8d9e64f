package engine

import (
	"context"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zzenonn/nntpvault/internal/catalog"
	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/vaultcrypto"
	"github.com/zzenonn/nntpvault/internal/vaulterrors"
	"github.com/zzenonn/nntpvault/internal/wire"
)

const metaDownloadConcurrency = 10

// MetaResult is the decoded view of one path's meta log plus its
// not-yet-flushed transient commands (§4.11 "DownloadMetaForPath").
type MetaResult struct {
	Kind     domain.PathKind
	Commands []domain.Command
}

// splitRemotePath validates remotePath and decomposes it into its
// ordered ancestor folder paths (including the root, "") and its final
// file name (§4.11 step 1-2).
func splitRemotePath(remotePath string) (ancestors []string, fileName string, err error) {
	if !strings.HasPrefix(remotePath, "/") {
		return nil, "", vaulterrors.InvalidPath(remotePath, "must be absolute")
	}
	if path.Clean(remotePath) != remotePath {
		return nil, "", vaulterrors.InvalidPath(remotePath, "not in canonical form")
	}
	if remotePath == "/" {
		return nil, "", vaulterrors.InvalidPath(remotePath, "missing file name")
	}

	segments := strings.Split(strings.TrimPrefix(remotePath, "/"), "/")
	fileName = segments[len(segments)-1]
	if fileName == "" {
		return nil, "", vaulterrors.InvalidPath(remotePath, "empty file name")
	}

	ancestors = append(ancestors, "")
	cur := ""
	for _, seg := range segments[:len(segments)-1] {
		cur = cur + "/" + seg
		ancestors = append(ancestors, cur)
	}
	return ancestors, fileName, nil
}

func lastSegment(p string) string {
	idx := strings.LastIndex(p, "/")
	return p[idx+1:]
}

// pathKind reports whether path is known as a File or Folder path,
// consulting the transient cache first and then the assurance log's
// first slot in each namespace (§4.11 "namespaces are disjoint").
func (e *Engine) pathKind(path string) (domain.PathKind, error) {
	kind, err := e.cat.MetaTypeAtPathInTransientCache(path)
	if err != nil {
		return domain.PathUnknown, err
	}
	if kind != domain.PathUnknown {
		return kind, nil
	}

	if a, err := e.cat.FindMatchingSegmentInAssurancesByIndexId(e.gen.MetaFileID(0, path)); err != nil {
		return domain.PathUnknown, err
	} else if a != nil {
		return domain.PathFile, nil
	}
	if a, err := e.cat.FindMatchingSegmentInAssurancesByIndexId(e.gen.MetaFolderID(0, path)); err != nil {
		return domain.PathUnknown, err
	} else if a != nil {
		return domain.PathFolder, nil
	}
	return domain.PathUnknown, nil
}

// commandsForPath returns path's full command list — every flushed meta
// slot decoded in order, followed by its transient commands — and its
// namespace kind (§4.11 "DownloadMetaForPath").
func (e *Engine) commandsForPath(ctx context.Context, p string) ([]domain.Command, domain.PathKind, error) {
	kind, err := e.pathKind(p)
	if err != nil || kind == domain.PathUnknown {
		return nil, kind, err
	}

	idFunc := e.gen.MetaFileID
	if kind == domain.PathFolder {
		idFunc = e.gen.MetaFolderID
	}

	var slotIDs []domain.IndexID
	for i := uint32(0); ; i++ {
		id := idFunc(i, p)
		a, err := e.cat.FindMatchingSegmentInAssurancesByIndexId(id)
		if err != nil {
			return nil, kind, err
		}
		if a == nil {
			break
		}
		slotIDs = append(slotIDs, id)
	}

	raws := make([][]byte, len(slotIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metaDownloadConcurrency)
	for i, id := range slotIDs {
		i, id := i, id
		g.Go(func() error {
			data, err := e.DownloadChunk(gctx, id, true)
			if err != nil {
				return err
			}
			raws[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, kind, err
	}

	var commands []domain.Command
	running := 0
	for _, raw := range raws {
		seg, err := wire.DecodeMetaSegment(raw)
		if err != nil {
			return nil, kind, err
		}
		for _, cmd := range seg.Commands {
			cmd.Index = running
			commands = append(commands, cmd)
			running++
		}
	}

	transientCmds, err := e.cat.CommandsInTransientCache(p)
	if err != nil {
		return nil, kind, err
	}
	for _, tc := range transientCmds {
		cmd := tc.Cmd
		cmd.Index = tc.Index
		commands = append(commands, cmd)
	}

	return commands, kind, nil
}

// DownloadMetaForPath resolves path's full command list, or nil if
// neither a File nor a Folder exists at path (§4.11).
func (e *Engine) DownloadMetaForPath(ctx context.Context, p string) (*MetaResult, error) {
	commands, kind, err := e.commandsForPath(ctx, p)
	if err != nil {
		return nil, err
	}
	if kind == domain.PathUnknown {
		return nil, nil
	}
	return &MetaResult{Kind: kind, Commands: commands}, nil
}

// pushFileToMeta records the folder chain and file/block commands for
// remotePath into the transient cache, enforcing WORM and namespace
// disjointness (§4.11 "pushFileToMeta").
func (e *Engine) pushFileToMeta(ctx context.Context, blockCmds []domain.Command, fileSize int64, remotePath string, ignoreFile bool) error {
	e.metaSem.Lock()
	defer e.metaSem.Unlock()

	ancestors, fileName, err := splitRemotePath(remotePath)
	if err != nil {
		return err
	}

	for _, d := range ancestors {
		kind, err := e.pathKind(d)
		if err != nil {
			return err
		}
		if kind == domain.PathFile {
			return vaulterrors.MetaEntryOverwrite(d, "directory would overwrite file")
		}
	}

	if !ignoreFile {
		kind, err := e.pathKind(remotePath)
		if err != nil {
			return err
		}
		switch kind {
		case domain.PathFolder:
			return vaulterrors.MetaEntryOverwrite(remotePath, "file would overwrite directory")
		case domain.PathFile:
			return vaulterrors.MetaEntryOverwrite(remotePath, "file already exists")
		}
	}

	var pushList []catalog.TransientCommand

	for i := 0; i < len(ancestors)-1; i++ {
		parent, child := ancestors[i], ancestors[i+1]
		childName := lastSegment(child)

		existing, _, err := e.commandsForPath(ctx, parent)
		if err != nil {
			return err
		}
		found := false
		for _, c := range existing {
			if c.Kind == domain.CommandAddFolder && c.Name == childName {
				found = true
				break
			}
		}
		if !found {
			pushList = append(pushList, catalog.TransientCommand{
				Path:  parent,
				Index: len(existing),
				Cmd:   domain.Command{Kind: domain.CommandAddFolder, Name: childName},
			})
		}
	}

	if !ignoreFile {
		parent := ancestors[len(ancestors)-1]
		existing, _, err := e.commandsForPath(ctx, parent)
		if err != nil {
			return err
		}
		pushList = append(pushList, catalog.TransientCommand{
			Path:  parent,
			Index: len(existing),
			Cmd:   domain.Command{Kind: domain.CommandAddFile, Name: fileName, FileSize: fileSize},
		})

		for i, bc := range blockCmds {
			pushList = append(pushList, catalog.TransientCommand{
				Path:  remotePath,
				Index: i,
				Cmd:   bc,
			})
		}
	}

	return e.cat.AddCommandsToTransientCache(pushList)
}

// PushFileToMeta is the public form of pushFileToMeta for callers that
// already have their block commands (§6 "Engine public surface").
func (e *Engine) PushFileToMeta(ctx context.Context, blockCmds []domain.Command, fileSize int64, remotePath string) error {
	return e.pushFileToMeta(ctx, blockCmds, fileSize, remotePath, false)
}

// NewDirectory creates the folder chain for remotePath without any
// terminal file (§4.11 "NewDirectory").
func (e *Engine) NewDirectory(ctx context.Context, remotePath string) error {
	return e.pushFileToMeta(ctx, nil, 0, remotePath+"/.ignore", true)
}

// FlushMeta writes every path's queued transient commands to its next
// free meta slots and clears them from the transient cache on success
// (§4.11 "FlushMeta").
func (e *Engine) FlushMeta(ctx context.Context) error {
	e.metaSem.Lock()
	defer e.metaSem.Unlock()

	paths, err := e.cat.PathsWithTransientCommands()
	if err != nil {
		return err
	}

	for _, p := range paths {
		cmds, err := e.cat.CommandsInTransientCache(p)
		if err != nil {
			return err
		}
		if len(cmds) == 0 {
			continue
		}

		kind, err := e.cat.MetaTypeAtPathInTransientCache(p)
		if err != nil {
			return err
		}
		idFunc := e.gen.MetaFileID
		if kind == domain.PathFolder {
			idFunc = e.gen.MetaFolderID
		}

		nextSlot := uint32(0)
		for {
			a, err := e.cat.FindMatchingSegmentInAssurancesByIndexId(idFunc(nextSlot, p))
			if err != nil {
				return err
			}
			if a == nil {
				break
			}
			nextSlot++
		}

		domainCmds := make([]domain.Command, len(cmds))
		for i, tc := range cmds {
			domainCmds[i] = tc.Cmd
		}

		maxChunk := wire.MaxPlainChunkSize(e.cfg.SegmentSize)
		segs := wire.SplitMetaSegment(domain.MetaSegment{Commands: domainCmds}, maxChunk)

		for i, seg := range segs {
			hash := vaultcrypto.ContentHash(seg)
			id := idFunc(nextSlot+uint32(i), p)
			if err := e.uploadChunk(ctx, seg, hash, id, chunkMeta); err != nil {
				return fmt.Errorf("flush meta for %q: %w", p, err)
			}
		}

		cutoff := cmds[len(cmds)-1].Index + 1
		if err := e.cat.CommandsFlushedForPath(p, cutoff); err != nil {
			return err
		}
	}
	return nil
}
