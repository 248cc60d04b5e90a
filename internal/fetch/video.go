package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"ladle/internal/logging"
	"ladle/internal/recipes"
	"ladle/internal/services"
)

// AudioSentinelPrefix marks document content that is a local audio file
// path awaiting transcription rather than text. The structurer owns the
// file from that point and removes it after transcription.
const AudioSentinelPrefix = "[AUDIO_FILE]:"

// defaultVideoTitle is used when the watch page yields no og:title.
const defaultVideoTitle = "YouTube Recipe Video"

// noVideoContent is returned as document content when every rung of the
// video ladder failed. It is content, not an error: the structurer still
// produces a (degraded) recipe from it.
const noVideoContent = "No content available for this video."

var videoHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"m.youtube.com":   {},
	"youtu.be":        {},
}

func isVideoHost(host string) bool {
	_, ok := videoHosts[strings.ToLower(host)]
	return ok
}

// videoID extracts the video identifier from the supported URL shapes:
// youtu.be/<id>, /watch?v=<id>, /embed/<id>, /v/<id>, /shorts/<id>.
func videoID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())

	if host == "youtu.be" {
		if id := strings.Trim(parsed.Path, "/"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("no video id in %s", rawURL)
	}

	path := parsed.Path
	switch {
	case path == "/watch":
		if id := parsed.Query().Get("v"); id != "" {
			return id, nil
		}
	case strings.Contains(path, "/embed/"):
		return pathSegmentAfter(path, "/embed/")
	case strings.Contains(path, "/v/"):
		return pathSegmentAfter(path, "/v/")
	case strings.Contains(path, "/shorts/"):
		return pathSegmentAfter(path, "/shorts/")
	}
	return "", fmt.Errorf("no video id in %s", rawURL)
}

func pathSegmentAfter(path, marker string) (string, error) {
	_, rest, _ := strings.Cut(path, marker)
	if id, _, _ := strings.Cut(rest, "/"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no video id after %s", marker)
}

// fetchVideo resolves video content through a best-effort ladder:
// transcript API, audio download deferred to transcription, watch-page
// description, placeholder. Only an unextractable video id is an error.
func (f *Fetcher) fetchVideo(ctx context.Context, rawURL string) (*SourceDocument, error) {
	id, err := videoID(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, "fetch", "video", "extract video id", err)
	}
	log := logging.WithContext(ctx, f.logger)

	result := &SourceDocument{
		Kind:  recipes.SourceVideo,
		Title: defaultVideoTitle,
	}

	// Watch-page metadata is best-effort; failures leave the defaults.
	description := ""
	if body, err := f.get(ctx, rawURL); err == nil {
		if page, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			if title := metaProperty(page, "og:title"); title != "" {
				result.Title = title
			}
			result.ImageURL = metaProperty(page, "og:image")
			description = metaProperty(page, "og:description")
			if description == "" {
				description = metaName(page, "description")
			}
		}
	} else {
		log.Warn("video metadata fetch failed", "url", rawURL, "error", err)
	}

	if transcript, err := f.transcript(ctx, id); err != nil {
		log.Warn("transcript fetch failed", "video_id", id, "error", err)
	} else if transcript != "" {
		result.Content = transcript
		return result, nil
	}

	if audioPath, err := f.downloadAudio(ctx, rawURL); err != nil {
		log.Warn("video audio download failed", "url", rawURL, "error", err)
	} else {
		result.Content = AudioSentinelPrefix + audioPath
		return result, nil
	}

	if description != "" {
		result.Content = fmt.Sprintf("Video Description: %s. (Note: Full transcript was unavailable, generating recipe from description.)", description)
		return result, nil
	}

	result.Content = noVideoContent
	return result, nil
}

// transcript asks the configured transcript API for the video's captions
// as plain text. Returns "" without error when the API is unconfigured or
// has no transcript.
func (f *Fetcher) transcript(ctx context.Context, videoID string) (string, error) {
	if f.cfg.TranscriptAPIURL == "" {
		return "", nil
	}

	watchURL := "https://www.youtube.com/watch?v=" + videoID
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.TranscriptAPIURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		query := req.URL.Query()
		query.Set("url", watchURL)
		if f.cfg.TranscriptAPIKey != "" {
			query.Set("api_key", f.cfg.TranscriptAPIKey)
		}
		query.Set("text", "true")
		req.URL.RawQuery = query.Encode()

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if isRetryableStatus(resp.StatusCode) {
			return fmt.Errorf("transcript api: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("transcript api: status %d", resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	if err := backoff.Retry(operation, f.retryPolicy(ctx)); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// downloadAudio extracts the video's audio track to an mp3 under the temp
// dir via yt-dlp. The caller owns the returned file.
func (f *Fetcher) downloadAudio(ctx context.Context, rawURL string) (string, error) {
	base := filepath.Join(f.tempDir, "yt_audio_"+uuid.NewString())
	template := base + ".%(ext)s"
	audioPath := base + ".mp3"

	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--output", template,
		"--quiet",
		"--no-warnings",
		rawURL,
	}
	if output, err := f.runCommand(ctx, f.cfg.YtDlpBinary, args...); err != nil {
		return "", fmt.Errorf("%s: %w: %s", f.cfg.YtDlpBinary, err, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("%s: no audio file produced: %w", f.cfg.YtDlpBinary, err)
	}
	return audioPath, nil
}
