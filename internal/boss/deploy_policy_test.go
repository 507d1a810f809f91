package boss

import (
	"strconv"
	"strings"
	"testing"
)

func TestRemoteLaunchCommandContainsPortOnBothShells(t *testing.T) {
	line := remoteLaunchCommand(40129)
	if !strings.Contains(line, "--port "+strconv.Itoa(40129)) {
		t.Fatalf("expected the unix half to mention the port: %q", line)
	}
	lines := strings.SplitN(line, "\n", 2)
	if len(lines) != 2 {
		t.Fatalf("expected a two-line polyglot command, got %q", line)
	}
	if !strings.Contains(lines[1], "exec $HOME/.rjrsync/rjrsync-agent") {
		t.Fatalf("expected the second line to exec the posix agent: %q", lines[1])
	}
	if !strings.Contains(lines[0], `%HOMEPATH%\.rjrsync\rjrsync-agent.exe`) {
		t.Fatalf("expected the first line to reference the windows agent path: %q", lines[0])
	}
}

func TestAuthorizeDeployAlways(t *testing.T) {
	if err := authorizeDeploy(SessionConfig{DeployPolicy: DeployPolicyAlways}); err != nil {
		t.Fatalf("authorizeDeploy: %v", err)
	}
}

func TestAuthorizeDeployErrorPolicy(t *testing.T) {
	if err := authorizeDeploy(SessionConfig{DeployPolicy: DeployPolicyError}); err == nil {
		t.Fatalf("expected an error when deploy policy is Error")
	}
}

func TestAuthorizeDeployPromptAccepts(t *testing.T) {
	err := authorizeDeploy(SessionConfig{DeployPolicy: DeployPolicyPrompt, Prompter: CannedPrompter(true)})
	if err != nil {
		t.Fatalf("authorizeDeploy: %v", err)
	}
}

func TestAuthorizeDeployPromptDeclines(t *testing.T) {
	err := authorizeDeploy(SessionConfig{DeployPolicy: DeployPolicyPrompt, Prompter: CannedPrompter(false)})
	if err == nil {
		t.Fatalf("expected an error when the prompt is declined")
	}
}

func TestAuthorizeDeployPromptWithoutPrompter(t *testing.T) {
	err := authorizeDeploy(SessionConfig{DeployPolicy: DeployPolicyPrompt})
	if err == nil {
		t.Fatalf("expected an error when no prompter is configured")
	}
}
