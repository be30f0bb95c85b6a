package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/domain"
)

// clientStatus is the subset of the VPN client's `status --json` output we
// project into the state cells. The full format is engine-owned and opaque.
type clientStatus struct {
	ExitNodeID             string `json:"ExitNodeID"`
	ExitNodeAllowLANAccess bool   `json:"ExitNodeAllowLANAccess"`
	Peers                  []struct {
		ID       string `json:"ID"`
		HostName string `json:"HostName"`
	} `json:"Peers"`
}

// CLIController drives the platform VPN client binary via its command-line
// interface and refreshes the state cells from its status output.
type CLIController struct {
	clientBin string
	state     *State
	logger    *zap.Logger
}

// NewCLIController creates a controller for the given client binary.
func NewCLIController(clientBin string, state *State, logger *zap.Logger) *CLIController {
	return &CLIController{
		clientBin: clientBin,
		state:     state,
		logger:    logger,
	}
}

// Connect brings the VPN up.
func (c *CLIController) Connect() error {
	return c.run("up")
}

// Disconnect tears the VPN down.
func (c *CLIController) Disconnect() error {
	return c.run("down")
}

// SetExitNode selects an exit node; empty id clears the selection.
func (c *CLIController) SetExitNode(id string, allowLANAccess bool) error {
	return c.run("set",
		"--exit-node="+id,
		"--exit-node-allow-lan-access="+strconv.FormatBool(allowLANAccess))
}

// Restart cycles the connection so a committed deny-list change takes
// effect on the next session.
func (c *CLIController) Restart() error {
	if err := c.run("down"); err != nil {
		return err
	}
	return c.run("up")
}

// Refresh reads the client's status output and publishes both state cells.
func (c *CLIController) Refresh() error {
	cmd := exec.Command(c.clientBin, "status", "--json")
	cmd.Stdin = nil
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("status query failed: %w", err)
	}

	var status clientStatus
	if err := json.Unmarshal(output, &status); err != nil {
		return fmt.Errorf("failed to decode status output: %w", err)
	}

	c.state.SetPrefs(&domain.Prefs{
		ExitNodeID:             status.ExitNodeID,
		ExitNodeAllowLANAccess: status.ExitNodeAllowLANAccess,
	})

	nm := &domain.NetMap{}
	for _, peer := range status.Peers {
		nm.Peers = append(nm.Peers, domain.Peer{ID: peer.ID, HostName: peer.HostName})
	}
	c.state.SetNetMap(nm)
	return nil
}

// Poll refreshes the state cells on the given interval until the context
// is canceled. Refresh failures are logged and the poll continues.
func (c *CLIController) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(); err != nil {
			c.logger.Warn("engine state refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *CLIController) run(args ...string) error {
	cmd := exec.Command(c.clientBin, args...)
	cmd.Stdin = nil
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", c.clientBin, args[0], err, output)
	}
	return nil
}

// Ensure CLIController implements domain.EngineController.
var _ domain.EngineController = (*CLIController)(nil)
