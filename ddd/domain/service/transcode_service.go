package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"media-service/ddd/domain/entity"
	"media-service/ddd/domain/gateway"
	"media-service/ddd/domain/port"
	"media-service/ddd/domain/vo"
	"media-service/ddd/infrastructure/workspace"
	"media-service/pkg/config"
	"media-service/pkg/errno"
	"media-service/pkg/logger"
)

// TranscodeService 转码领域服务：工作目录 -> 编码器 -> 存储网关
type TranscodeService interface {
	// ToWebp 转单帧 WebP，返回 {ImageKey}
	ToWebp(ctx context.Context, scope vo.Scope, file vo.MediaFile) (vo.TranscodeManifest, error)
	// ToHLS 切片为 VOD 播放列表，返回 {PlaylistKey, SegmentKeys}
	ToHLS(ctx context.Context, scope vo.Scope, file vo.MediaFile) (vo.TranscodeManifest, error)
}

// TranscodeOptions 转码参数
type TranscodeOptions struct {
	TempDir           string
	WebP              vo.WebPParams
	HLS               vo.HLSParams
	MaxSegments       int
	UploadConcurrency int
	StrictSegments    bool
	// DrainTimeout bounds how long a cancelled encode may keep running before the workspace is removed.
	DrainTimeout time.Duration
}

// OptionsFromConfig 从配置构造转码参数
func OptionsFromConfig(cfg *config.Config) TranscodeOptions {
	return TranscodeOptions{
		TempDir: cfg.Transcode.FFmpeg.TempDir,
		WebP:    vo.WebPParams{Quality: cfg.Transcode.WebP.Quality},
		HLS: vo.HLSParams{
			SegmentDuration:   cfg.Transcode.HLS.SegmentDuration,
			GOPSize:           cfg.Transcode.HLS.GOPSize,
			SceneCutThreshold: cfg.Transcode.HLS.SceneCutThreshold,
		},
		MaxSegments:       cfg.Transcode.HLS.MaxSegments,
		UploadConcurrency: cfg.Transcode.HLS.UploadConcurrency,
		StrictSegments:    cfg.Transcode.HLS.StrictSegments,
		DrainTimeout:      cfg.Transcode.FFmpeg.GracePeriod + 2*time.Second,
	}
}

type transcodeServiceImpl struct {
	storage gateway.StorageGateway
	runner  port.EncoderRunner
	opts    TranscodeOptions
}

// NewTranscodeService 创建转码领域服务
func NewTranscodeService(storage gateway.StorageGateway, runner port.EncoderRunner, opts TranscodeOptions) TranscodeService {
	if opts.WebP.Quality <= 0 {
		opts.WebP.Quality = vo.DefaultWebPQuality
	}
	if opts.HLS.SegmentDuration <= 0 {
		opts.HLS.SegmentDuration = vo.DefaultSegmentDuration
	}
	if opts.HLS.GOPSize <= 0 {
		opts.HLS.GOPSize = vo.DefaultGOPSize
	}
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = 1000
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 8
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	return &transcodeServiceImpl{storage: storage, runner: runner, opts: opts}
}

func (s *transcodeServiceImpl) ToWebp(ctx context.Context, scope vo.Scope, file vo.MediaFile) (vo.TranscodeManifest, error) {
	imageKey, err := vo.BuildKey(vo.VisibilityPrivate, scope, vo.NewArtifactName(".webp"))
	if err != nil {
		return vo.TranscodeManifest{}, &errno.ValidationError{Field: "scope", Reason: err.Error()}
	}

	return s.runJob(ctx, vo.MediaKindImage, scope, file, func(ws *workspace.Workspace, input string) (vo.TranscodeManifest, error) {
		const output = "output.webp"
		if err := s.encode(ctx, port.EncodeJob{
			Op:   "webp",
			Args: s.opts.WebP.GetFFmpegArgs(input, output),
			Dir:  ws.Path(),
		}); err != nil {
			return vo.TranscodeManifest{}, err
		}
		body, err := ws.ReadFile(output)
		if err != nil {
			return vo.TranscodeManifest{}, &errno.EncoderError{Op: "webp", Err: fmt.Errorf("encoder produced no output: %w", err)}
		}
		if err := s.storage.Put(ctx, gateway.Artifact{
			Key:         imageKey,
			Body:        body,
			ContentType: vo.WebPContentType,
			ACL:         vo.ACLPrivate,
		}); err != nil {
			return vo.TranscodeManifest{}, err
		}
		return vo.TranscodeManifest{ImageKey: imageKey}, nil
	})
}

func (s *transcodeServiceImpl) ToHLS(ctx context.Context, scope vo.Scope, file vo.MediaFile) (vo.TranscodeManifest, error) {
	baseKey, err := vo.BuildKey(vo.VisibilityPrivate, scope, vo.NewArtifactName(""))
	if err != nil {
		return vo.TranscodeManifest{}, &errno.ValidationError{Field: "scope", Reason: err.Error()}
	}
	playlistKey := baseKey.Join(vo.PlaylistName)

	return s.runJob(ctx, vo.MediaKindVideo, scope, file, func(ws *workspace.Workspace, input string) (vo.TranscodeManifest, error) {
		if err := s.encode(ctx, port.EncodeJob{
			Op:   "hls",
			Args: s.opts.HLS.GetFFmpegArgs(input),
			Dir:  ws.Path(),
		}); err != nil {
			return vo.TranscodeManifest{}, err
		}

		playlist, err := ws.ReadFile(vo.PlaylistName)
		if err != nil {
			return vo.TranscodeManifest{}, &errno.EncoderError{Op: "hls", Err: fmt.Errorf("encoder produced no playlist: %w", err)}
		}
		if err := s.storage.Put(ctx, gateway.Artifact{
			Key:         playlistKey,
			Body:        playlist,
			ContentType: vo.PlaylistContentType,
			ACL:         vo.ACLPrivate,
		}); err != nil {
			return vo.TranscodeManifest{}, err
		}

		segmentKeys, err := s.uploadSegments(ctx, ws, baseKey)
		if err != nil {
			return vo.TranscodeManifest{}, err
		}
		if err := s.reconcile(ctx, playlistKey, playlist, segmentKeys); err != nil {
			return vo.TranscodeManifest{}, err
		}
		return vo.TranscodeManifest{PlaylistKey: playlistKey, SegmentKeys: segmentKeys}, nil
	})
}

// runJob owns the workspace and the job state for one encode. The workspace
// is released on every path, including panics in work.
func (s *transcodeServiceImpl) runJob(ctx context.Context, kind vo.MediaKind, scope vo.Scope, file vo.MediaFile,
	work func(ws *workspace.Workspace, input string) (vo.TranscodeManifest, error)) (manifest vo.TranscodeManifest, err error) {
	if len(file.Data) == 0 {
		return manifest, &errno.ValidationError{Field: "file", Reason: "is empty"}
	}

	job := entity.NewTranscodeJob(kind, scope)
	log := logger.WithContext(ctx).WithFields(map[string]interface{}{
		"job_uuid": job.JobUUID(),
		"kind":     kind.String(),
	})

	ws, err := workspace.Acquire(s.opts.TempDir)
	if err != nil {
		job.Fail(err)
		job.CleanedUp()
		return manifest, fmt.Errorf("acquire workspace: %w", err)
	}
	job.SetWorkDir(ws.Path())
	defer func() {
		if err != nil {
			job.Fail(err)
		}
		_ = ws.Release()
		job.CleanedUp()
		log.Info("transcode job finished", map[string]interface{}{
			"states":    job.History(),
			"failed":    err != nil,
			"artifacts": len(job.Manifest().Keys()),
		})
	}()

	inputName := "input" + file.Ext(".bin")
	inputPath, err := ws.WriteFile(inputName, file.Data)
	if err != nil {
		return manifest, err
	}
	if err = job.MarkInputWritten(inputPath); err != nil {
		return manifest, err
	}
	if err = job.TransitionTo(vo.JobStateEncoding); err != nil {
		return manifest, err
	}
	if manifest, err = work(ws, inputName); err != nil {
		log.Warn("transcode job failed", map[string]interface{}{"error": err.Error()})
		return vo.TranscodeManifest{}, err
	}
	if err = job.TransitionTo(vo.JobStateArtifactsUploaded); err != nil {
		return vo.TranscodeManifest{}, err
	}
	job.SetManifest(manifest)
	return manifest, nil
}

// encode waits for the job. When ctx ends first, it keeps waiting up to
// DrainTimeout for the encoder to stop so the workspace is not removed under it.
func (s *transcodeServiceImpl) encode(ctx context.Context, job port.EncodeJob) error {
	f := s.runner.Submit(ctx, job)
	_, err := f.Wait(ctx)
	if ctx.Err() == nil {
		return err
	}
	timer := time.NewTimer(s.opts.DrainTimeout)
	defer timer.Stop()
	select {
	case <-f.Done():
	case <-timer.C:
		logger.WithContext(ctx).Warn("encoder still running after cancellation", map[string]interface{}{
			"op":            job.Op,
			"drain_timeout": s.opts.DrainTimeout.String(),
		})
	}
	return err
}

// uploadSegments probes indexes 0..MaxSegments-1 and uploads the files that exist.
// Missing indexes are skipped; the first upload error cancels the rest.
func (s *transcodeServiceImpl) uploadSegments(ctx context.Context, ws *workspace.Workspace, baseKey vo.ObjectKey) ([]vo.ObjectKey, error) {
	type segment struct {
		index int
		name  string
	}
	var present []segment
	for i := 0; i < s.opts.MaxSegments; i++ {
		name := vo.SegmentName(i)
		if ws.Exists(name) {
			present = append(present, segment{index: i, name: name})
		}
	}

	keys := make([]vo.ObjectKey, len(present))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.UploadConcurrency)
	for i, seg := range present {
		g.Go(func() error {
			body, err := ws.ReadFile(seg.name)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			key := baseKey.Join(seg.name)
			if err := s.storage.Put(gctx, gateway.Artifact{
				Key:         key,
				Body:        body,
				ContentType: vo.SegmentContentType,
				ACL:         vo.ACLPrivate,
			}); err != nil {
				return err
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := keys[:0]
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out, nil
}

// reconcile compares playlist entries with the uploaded set. Loose mode only warns.
func (s *transcodeServiceImpl) reconcile(ctx context.Context, playlistKey vo.ObjectKey, playlist []byte, uploaded []vo.ObjectKey) error {
	have := make(map[string]struct{}, len(uploaded))
	for _, k := range uploaded {
		have[k.Base()] = struct{}{}
	}
	var missing []string
	for _, name := range vo.PlaylistSegments(playlist) {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	if s.opts.StrictSegments {
		return &errno.MissingSegmentsError{PlaylistKey: playlistKey.String(), Missing: missing}
	}
	logger.WithContext(ctx).Warn("playlist references segments that were not uploaded", map[string]interface{}{
		"playlist_key": playlistKey.String(),
		"missing":      missing,
	})
	return nil
}
