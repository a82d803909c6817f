// Package file implements the "file" namespace: writing and reading local files and
// downloading URLs into a directory.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/morezero/script-runtime/pkg/registry"
	"github.com/morezero/script-runtime/pkg/value"
)

const logPrefix = "file:plugin"

// Namespace is the prefix scripts use to address this plugin.
const Namespace = "file"

// Version of the operation set exposed to scripts.
const Version = "1.0.0"

// Plugin serves the file namespace.
type Plugin struct {
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Plugin. Zero config fields take their defaults.
func New(cfg Config) *Plugin {
	cfg = cfg.withDefaults()
	p := &Plugin{cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	slog.Info(fmt.Sprintf("%s - charset=%s timeout=%s maxBody=%d rps=%.2f",
		logPrefix, cfg.DefaultCharset, cfg.RequestTimeout, cfg.MaxBodySize, cfg.RequestsPerSecond))
	return p
}

// Namespace implements registry.Plugin.
func (p *Plugin) Namespace() string { return Namespace }

// Version implements registry.Plugin.
func (p *Plugin) Version() string { return Version }

// Description implements registry.Plugin.
func (p *Plugin) Description() string {
	return "Write and read local files; download URLs into a directory"
}

func str(name string) registry.Param {
	return registry.Param{Name: name, Type: value.TypeString}
}

func appendParam() registry.Param {
	return registry.Param{Name: "append", Type: value.TypeBoolean, Optional: true, Default: value.Bool(false)}
}

func urlsParam() registry.Param {
	return registry.Param{Name: "urls", Type: value.TypeList}
}

func delayParam() registry.Param {
	return registry.Param{Name: "delay", Type: value.TypeRange}
}

// Operations implements registry.Plugin.
func (p *Plugin) Operations() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:    "write",
			Params:  []registry.Param{str("path"), str("content"), appendParam()},
			Returns: value.TypeNull,
			Doc:     "Write a string in the default charset; append=false truncates the file",
			Example: `file.write("/data/result.html", html, false)`,
			Impl:    p.writeString,
		},
		{
			Name:    "write",
			Params:  []registry.Param{str("path"), str("content"), str("charset"), appendParam()},
			Returns: value.TypeNull,
			Doc:     "Write a string in the named charset",
			Example: `file.write("/data/result.html", html, "UTF-8", false)`,
			Impl:    p.writeString,
		},
		{
			Name:    "write",
			Params:  []registry.Param{str("path"), {Name: "bytes", Type: value.TypeBytes}, appendParam()},
			Returns: value.TypeNull,
			Doc:     "Write raw bytes",
			Example: `file.write("/data/image.png", resp.bytes, false)`,
			Impl:    p.writeBytes,
		},
		{
			Name:    "write",
			Params:  []registry.Param{str("path"), {Name: "stream", Type: value.TypeStream}, appendParam()},
			Returns: value.TypeNull,
			Doc:     "Copy a stream to the file; the stream is consumed",
			Example: `file.write("/data/archive.zip", resp.stream)`,
			Impl:    p.writeStream,
		},
		{
			Name:    "bytes",
			Params:  []registry.Param{str("path")},
			Returns: value.TypeBytes,
			Doc:     "Read the whole file",
			Example: `file.bytes("/data/result.html")`,
			Impl:    p.readBytes,
		},
		{
			Name: "string",
			Params: []registry.Param{
				str("path"),
				{Name: "charset", Type: value.TypeString, Optional: true, Default: value.String("")},
			},
			Returns: value.TypeString,
			Doc:     "Read the file and decode it with the given or default charset",
			Example: `file.string("/data/result.html", "UTF-8")`,
			Impl:    p.readString,
		},
		p.download("url", false, false, "Download one URL, overwriting an existing file",
			`file.download("/data/images", url)`),
		p.download("urls", false, false, "Download URLs in order, overwriting existing files",
			`file.download("/data/images", urls)`),
		p.download("url", true, false, "Download one URL through a host:port proxy",
			`file.download("/data/images", url, "127.0.0.1:9999")`),
		p.download("urls", true, false, "Download URLs through a host:port proxy",
			`file.download("/data/images", urls, "127.0.0.1:9999")`),
		p.download("urls", false, true, "Download URLs with a random [min, max] ms pause before each; existing files are kept",
			`file.download("/data/images", urls, [1000, 4000])`),
		p.download("urls", true, true, "Paced download through a proxy; existing files are kept",
			`file.download("/data/images", urls, "127.0.0.1:9999", [1000, 4000])`),
		p.download("url", false, true, "Download one URL after a random pause; an existing file is kept",
			`file.download("/data/images", url, [1000, 4000])`),
		p.download("url", true, true, "Paced download of one URL through a proxy; an existing file is kept",
			`file.download("/data/images", url, "127.0.0.1:9999", [1000, 4000])`),
	}
}

// download builds one download overload. Overloads without a delay overwrite existing
// files; paced overloads never do.
func (p *Plugin) download(target string, proxied, paced bool, doc, example string) *registry.Descriptor {
	params := []registry.Param{str("dir")}
	if target == "url" {
		params = append(params, str("url"))
	} else {
		params = append(params, urlsParam())
	}
	if proxied {
		params = append(params, str("proxy"))
	}
	if paced {
		params = append(params, delayParam())
	}

	return &registry.Descriptor{
		Name:    "download",
		Params:  params,
		Returns: value.TypeList,
		Doc:     doc,
		Example: example,
		Impl: func(ctx context.Context, args []value.Value) (value.Value, error) {
			req := DownloadRequest{Overwrite: !paced}
			req.Dir, _ = args[0].AsString()

			urls, err := urlList(args[1])
			if err != nil {
				return value.Null(), err
			}
			req.URLs = urls

			next := 2
			if proxied {
				req.Proxy, _ = args[next].AsString()
				next++
			}
			if paced {
				lo, hi, err := value.Range(args[next])
				if err != nil {
					return value.Null(), fmt.Errorf("%w: %v", ErrInvalidArgument, err)
				}
				if !delayInRange(lo) || !delayInRange(hi) {
					return value.Null(), fmt.Errorf("%w: delay range [%d, %d] ms is out of range (limit %d ms)", ErrInvalidArgument, lo, hi, maxDelayMillis)
				}
				req.Delay = &DelayRange{Min: time.Duration(lo) * time.Millisecond, Max: time.Duration(hi) * time.Millisecond}
			}

			report, err := p.Download(ctx, req)
			if err != nil {
				return value.Null(), err
			}
			return report.Value(), nil
		},
	}
}

// maxDelayMillis is the largest pause bound that converts to a time.Duration.
const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

func delayInRange(ms int64) bool {
	return ms >= -maxDelayMillis && ms <= maxDelayMillis
}

func urlList(v value.Value) ([]string, error) {
	if s, ok := v.AsString(); ok {
		return []string{s}, nil
	}
	items, _ := v.AsList()
	urls := make([]string, len(items))
	for i, item := range items {
		s, ok := item.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: urls[%d] is %s, want string", ErrInvalidArgument, i, item.Kind())
		}
		urls[i] = s
	}
	return urls, nil
}

func (p *Plugin) writeString(ctx context.Context, args []value.Value) (value.Value, error) {
	path, _ := args[0].AsString()
	content, _ := args[1].AsString()
	charset := ""
	appendArg := args[2]
	if len(args) == 4 {
		charset, _ = args[2].AsString()
		appendArg = args[3]
	}
	appendMode, _ := appendArg.AsBool()
	_, err := p.WriteString(ctx, path, content, charset, appendMode)
	return value.Null(), err
}

func (p *Plugin) writeBytes(ctx context.Context, args []value.Value) (value.Value, error) {
	path, _ := args[0].AsString()
	b, _ := args[1].AsBytes()
	appendMode, _ := args[2].AsBool()
	_, err := p.WriteBytes(ctx, path, b, appendMode)
	return value.Null(), err
}

func (p *Plugin) writeStream(ctx context.Context, args []value.Value) (value.Value, error) {
	path, _ := args[0].AsString()
	s, _ := args[1].AsStream()
	appendMode, _ := args[2].AsBool()

	r, err := s.Take()
	if err != nil {
		return value.Null(), fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	defer r.Close()

	_, err = p.WriteFrom(ctx, path, r, appendMode)
	return value.Null(), err
}

func (p *Plugin) readBytes(ctx context.Context, args []value.Value) (value.Value, error) {
	path, _ := args[0].AsString()
	b, err := p.ReadBytes(ctx, path)
	if err != nil {
		return value.Null(), err
	}
	return value.Bytes(b), nil
}

func (p *Plugin) readString(ctx context.Context, args []value.Value) (value.Value, error) {
	path, _ := args[0].AsString()
	charset, _ := args[1].AsString()
	s, err := p.ReadString(ctx, path, charset)
	if err != nil {
		return value.Null(), err
	}
	return value.String(s), nil
}
