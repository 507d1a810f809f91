package boss

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/agentsrc"
	"github.com/rjrsync/rjrsync/internal/endpoint"
	"github.com/rjrsync/rjrsync/internal/protocol"
)

// Deploy extracts the embedded source tree, copies it to ep's host over
// scp, and builds a doer there with the remote Go toolchain. It is the
// fallback path taken whenever a remote doer is missing or running an
// incompatible version, grounded on the teacher's install() in
// pkg/agent/install.go (probe, copy, remote-invoke) adapted from a
// prebuilt-binary copy to a source copy + remote build.
func Deploy(ctx context.Context, ep endpoint.Endpoint) error {
	tmpDir, err := os.MkdirTemp("", "rjrsync-deploy-*")
	if err != nil {
		return errors.Wrap(err, "unable to create staging directory")
	}
	defer os.RemoveAll(tmpDir)

	if err := extractSource(tmpDir); err != nil {
		return errors.Wrap(err, "unable to extract embedded source")
	}

	target := ep.Host
	if ep.User != "" {
		target = ep.User + "@" + ep.Host
	}

	posix, err := probeRemoteOS(ctx, target)
	if err != nil {
		return errors.Wrap(err, "unable to probe remote platform")
	}

	remoteRoot := remoteStagingPath(posix)
	if err := scpSourceTree(ctx, tmpDir, target, remoteRoot); err != nil {
		return errors.Wrap(err, "unable to copy source tree to remote host")
	}

	if err := remoteBuild(ctx, target, remoteRoot, posix); err != nil {
		return errors.Wrap(err, "remote build failed")
	}

	return nil
}

// extractSource writes the embedded module source tree into dir.
func extractSource(dir string) error {
	return fs.WalkDir(agentsrc.Source, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, path)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o777)
		}
		data, err := agentsrc.Source.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, data, 0o666)
	})
}

// probeRemoteOS runs a portable polyglot that prints "windows" on
// cmd.exe and "posix" on a POSIX shell, letting one ssh invocation
// detect the remote shell without assuming which one answers.
func probeRemoteOS(ctx context.Context, target string) (posix bool, err error) {
	probe := "echo >/dev/null # >nul & echo windows\necho posix"
	cmd := exec.CommandContext(ctx, "ssh", target, probe)
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	first := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	return first == "posix", nil
}

func remoteStagingPath(posix bool) string {
	if posix {
		return "$HOME/." + protocol.RemoteTempDirName
	}
	return `%HOMEPATH%\.` + protocol.RemoteTempDirName
}

func scpSourceTree(ctx context.Context, localDir, target, remoteRoot string) error {
	mkdir := exec.CommandContext(ctx, "ssh", target, fmt.Sprintf("mkdir -p %s 2>nul || mkdir %s", remoteRoot, remoteRoot))
	if err := mkdir.Run(); err != nil {
		return err
	}
	scp := exec.CommandContext(ctx, "scp", "-r", localDir+"/.", target+":"+remoteRoot)
	var stderr strings.Builder
	scp.Stderr = io.Writer(&stderr)
	if err := scp.Run(); err != nil {
		return errors.Wrapf(err, "scp failed: %s", stderr.String())
	}
	return nil
}

func remoteBuild(ctx context.Context, target, remoteRoot string, posix bool) error {
	var buildCmd string
	if posix {
		buildCmd = fmt.Sprintf(". ~/.profile 2>/dev/null; cd %s && go build -o rjrsync-agent ./cmd/rjrsync-agent", remoteRoot)
	} else {
		buildCmd = fmt.Sprintf(`cd /d %s && go build -o rjrsync-agent.exe .\cmd\rjrsync-agent`, remoteRoot)
	}
	cmd := exec.CommandContext(ctx, "ssh", target, buildCmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "build output: %s", string(out))
	}
	return nil
}
