package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehiehn/deployseq/internal/chain"
	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
	"github.com/stevehiehn/deployseq/internal/plan"
)

const deployer = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

type deployCall struct {
	contract string
	args     []any
}

// mockClient confirms every deployment unless told to reject a contract.
type mockClient struct {
	calls         []deployCall
	rejectSubmit  map[string]error
	rejectConfirm map[string]error
	dryRun        bool
	n             int64
}

func (m *mockClient) Deploy(_ context.Context, contract string, args []any) (*chain.Pending, error) {
	m.calls = append(m.calls, deployCall{contract: contract, args: args})
	if err := m.rejectSubmit[contract]; err != nil {
		return nil, err
	}
	m.n++
	return &chain.Pending{
		Contract: contract,
		Address:  common.BigToAddress(big.NewInt(0x1000 + m.n)),
		TxHash:   common.BigToHash(big.NewInt(0xabc0 + m.n)),
		DryRun:   m.dryRun,
	}, nil
}

func (m *mockClient) AwaitConfirmation(_ context.Context, p *chain.Pending) (*chain.Receipt, error) {
	if err := m.rejectConfirm[p.Contract]; err != nil {
		return nil, err
	}
	return &chain.Receipt{Address: p.Address, TxHash: p.TxHash, BlockNumber: uint64(m.n)}, nil
}

func (m *mockClient) contracts() []string {
	var out []string
	for _, c := range m.calls {
		out = append(out, c.contract)
	}
	return out
}

func bridgeSteps() []plan.Step {
	return []plan.Step{
		{Name: "A"},
		{Name: "B", Args: []plan.Arg{plan.Lit("{{inputs.deployer}}")}},
		{Name: "L1", Args: []plan.Arg{plan.Ref("A"), plan.Lit("{{inputs.deployer}}")}},
		{Name: "L2", Args: []plan.Arg{plan.Lit("{{inputs.deployer}}")}},
	}
}

func newSequencer(client chain.Client, notify *bytes.Buffer) *Sequencer {
	s := &Sequencer{
		Client: client,
		Inputs: map[string]string{"deployer": deployer},
		RunID:  "test-run",
	}
	if notify != nil {
		s.Notifier = notify
	}
	return s
}

func runError(t *testing.T, err error) *dagerrors.RunError {
	t.Helper()
	var re *dagerrors.RunError
	require.True(t, errors.As(err, &re), "expected *RunError, got %T", err)
	return re
}

func TestSequencerDeploysAllStepsInOrder(t *testing.T) {
	client := &mockClient{}
	var notify bytes.Buffer

	run, err := newSequencer(client, &notify).Run(context.Background(), bridgeSteps())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "L1", "L2"}, run.Registry.Names())
	assert.Equal(t, 4, run.Registry.Len())
	for _, res := range run.Registry.All() {
		assert.True(t, res.Confirmed, res.Name)
		assert.NotEqual(t, common.Address{}, res.Address, res.Name)
	}

	a, _ := run.Registry.Get("A")
	l1Call := client.calls[2]
	require.Equal(t, "L1", l1Call.contract)
	assert.Equal(t, a.Address, l1Call.args[0])
	assert.Equal(t, deployer, l1Call.args[1])

	l1, _ := run.Registry.Get("L1")
	assert.Equal(t, []string{a.Address.Hex(), deployer}, l1.Args)
}

func TestSequencerEmitsOneNotificationPerStep(t *testing.T) {
	client := &mockClient{}
	var notify bytes.Buffer

	run, err := newSequencer(client, &notify).Run(context.Background(), bridgeSteps())
	require.NoError(t, err)

	var want strings.Builder
	for _, res := range run.Registry.All() {
		fmt.Fprintf(&want, "%s deployed to: %s\n", res.Name, res.Address.Hex())
	}
	assert.Equal(t, want.String(), notify.String())
}

func TestSequencerAbortsWhenConfirmationFails(t *testing.T) {
	client := &mockClient{rejectConfirm: map[string]error{"L1": errors.New("execution reverted")}}
	var notify bytes.Buffer

	run, err := newSequencer(client, &notify).Run(context.Background(), bridgeSteps())
	require.Error(t, err)
	assert.ErrorIs(t, err, dagerrors.ErrDeploymentRejected)

	re := runError(t, err)
	assert.Equal(t, "L1", re.StepID)
	assert.Equal(t, "confirm", re.Phase)
	assert.Contains(t, err.Error(), "execution reverted")

	assert.Equal(t, []string{"A", "B"}, run.Registry.Names())
	assert.Equal(t, []string{"A", "B", "L1"}, client.contracts(), "L2 must not be submitted")
	assert.Equal(t, 2, strings.Count(notify.String(), "deployed to:"))
}

func TestSequencerAbortsWhenSubmissionFails(t *testing.T) {
	client := &mockClient{rejectSubmit: map[string]error{"B": errors.New("insufficient funds")}}

	run, err := newSequencer(client, nil).Run(context.Background(), bridgeSteps())
	assert.ErrorIs(t, err, dagerrors.ErrDeploymentRejected)

	re := runError(t, err)
	assert.Equal(t, "B", re.StepID)
	assert.Equal(t, "submit", re.Phase)
	assert.Equal(t, []string{"A"}, run.Registry.Names())
	assert.Equal(t, []string{"A", "B"}, client.contracts())
}

func TestSequencerUnresolvedReference(t *testing.T) {
	client := &mockClient{}
	steps := []plan.Step{
		{Name: "A"},
		{Name: "L1", Args: []plan.Arg{plan.Ref("CT")}},
		{Name: "L2"},
	}

	run, err := newSequencer(client, nil).Run(context.Background(), steps)
	assert.ErrorIs(t, err, dagerrors.ErrUnresolvedDependency)
	assert.Equal(t, "L1", runError(t, err).StepID)
	assert.Equal(t, []string{"A"}, run.Registry.Names())
	assert.Equal(t, []string{"A"}, client.contracts())
}

func TestSequencerNeverReordersForwardReferences(t *testing.T) {
	client := &mockClient{}
	steps := []plan.Step{
		{Name: "L1", Args: []plan.Arg{plan.Ref("A")}},
		{Name: "A"},
	}

	run, err := newSequencer(client, nil).Run(context.Background(), steps)
	assert.ErrorIs(t, err, dagerrors.ErrUnresolvedDependency)
	assert.Zero(t, run.Registry.Len())
	assert.Empty(t, client.calls)
}

func TestSequencerUnresolvedTemplateAndDependsOn(t *testing.T) {
	tests := []struct {
		name string
		step plan.Step
	}{
		{"embedded template", plan.Step{Name: "X", Args: []plan.Arg{plan.Lit("prefix-{{steps.Missing.address}}")}}},
		{"depends_on", plan.Step{Name: "X", DependsOn: []string{"Missing"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			_, err := newSequencer(client, nil).Run(context.Background(), []plan.Step{tt.step})
			assert.ErrorIs(t, err, dagerrors.ErrUnresolvedDependency)
			assert.Empty(t, client.calls)
		})
	}
}

func TestSequencerResolvesEmbeddedAddressTemplate(t *testing.T) {
	client := &mockClient{}
	steps := []plan.Step{
		{Name: "A"},
		{Name: "B", Args: []plan.Arg{plan.Lit("{{steps.A.address}}")}},
		{Name: "C", Args: []plan.Arg{plan.Lit("{{ steps.A.address }}")}},
	}

	run, err := newSequencer(client, nil).Run(context.Background(), steps)
	require.NoError(t, err)
	a, _ := run.Registry.Get("A")
	assert.Equal(t, a.Address.Hex(), client.calls[1].args[0])
	assert.Equal(t, a.Address.Hex(), client.calls[2].args[0])
}

func TestSequencerMissingInputIsValidationError(t *testing.T) {
	client := &mockClient{}
	seq := &Sequencer{Client: client}
	_, err := seq.Run(context.Background(), []plan.Step{{Name: "A", Args: []plan.Arg{plan.Lit("{{inputs.nope}}")}}})
	assert.ErrorIs(t, err, dagerrors.ErrValidation)
	assert.Empty(t, client.calls)
}

func TestSequencerDuplicateStepBeforeSubmission(t *testing.T) {
	client := &mockClient{}
	steps := []plan.Step{
		{Name: "A"},
		{Name: "B"},
		{Name: "A", Contract: "Other"},
		{Name: "C"},
	}

	run, err := newSequencer(client, nil).Run(context.Background(), steps)
	assert.ErrorIs(t, err, dagerrors.ErrDuplicateStep)
	assert.Equal(t, "A", runError(t, err).StepID)
	assert.Equal(t, []string{"A", "B"}, client.contracts())
	assert.Equal(t, 2, run.Registry.Len())
}

func TestSequencerUsesContractID(t *testing.T) {
	client := &mockClient{}
	steps := []plan.Step{
		{Name: "TokenL1", Contract: "CustomToken"},
		{Name: "TokenL2", Contract: "CustomToken"},
	}

	run, err := newSequencer(client, nil).Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"CustomToken", "CustomToken"}, client.contracts())
	r1, _ := run.Registry.Get("TokenL1")
	r2, _ := run.Registry.Get("TokenL2")
	assert.NotEqual(t, r1.Address, r2.Address)
	assert.Equal(t, "CustomToken", r1.Contract)
}

func TestSequencerDryRunResultsAreNotConfirmed(t *testing.T) {
	client := &mockClient{dryRun: true}

	run, err := newSequencer(client, nil).Run(context.Background(), bridgeSteps())
	require.NoError(t, err)
	for _, res := range run.Registry.All() {
		assert.False(t, res.Confirmed, res.Name)
		assert.Empty(t, res.TxHash)
	}
}

// brokenClient returns neither a value nor an error.
type brokenClient struct {
	confirmNil bool
}

func (b brokenClient) Deploy(_ context.Context, contract string, _ []any) (*chain.Pending, error) {
	if b.confirmNil {
		return &chain.Pending{Contract: contract}, nil
	}
	return nil, nil
}

func (b brokenClient) AwaitConfirmation(context.Context, *chain.Pending) (*chain.Receipt, error) {
	return nil, nil
}

func TestSequencerRejectsEmptyClientReplies(t *testing.T) {
	tests := []struct {
		name   string
		client brokenClient
		phase  string
	}{
		{"no pending handle", brokenClient{}, "submit"},
		{"no receipt", brokenClient{confirmNil: true}, "confirm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := newSequencer(tt.client, nil).Run(context.Background(), bridgeSteps())
			assert.ErrorIs(t, err, dagerrors.ErrDeploymentRejected)
			re := runError(t, err)
			assert.Equal(t, "A", re.StepID)
			assert.Equal(t, tt.phase, re.Phase)
			assert.Zero(t, run.Registry.Len())
		})
	}
}

func TestRegistryRejectsOverwrite(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Insert(DeploymentResult{Name: "A", Address: common.HexToAddress("0x01")}))

	err := reg.Insert(DeploymentResult{Name: "A", Address: common.HexToAddress("0x02")})
	assert.ErrorIs(t, err, dagerrors.ErrDuplicateStep)

	got, ok := reg.Get("A")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x01"), got.Address)
	assert.Equal(t, map[string]string{"A": common.HexToAddress("0x01").Hex()}, reg.Addresses())
}

// Execute

func makeCtx(t *testing.T, inputs map[string]string) *RunContext {
	t.Helper()
	if inputs == nil {
		inputs = map[string]string{}
	}
	return &RunContext{
		RunID:   "test-run",
		WorkDir: t.TempDir(),
		Inputs:  inputs,
	}
}

func bridgePlan() *plan.Plan {
	return &plan.Plan{
		Name:   "bridge",
		Inputs: map[string]plan.Input{"deployer": {Required: true}},
		Steps:  bridgeSteps(),
	}
}

func TestExplainModeShowsPlaceholders(t *testing.T) {
	result, err := Execute(context.Background(), bridgePlan(), makeCtx(t, map[string]string{"deployer": deployer}), ModeExplain, Options{})
	require.NoError(t, err)

	require.Len(t, result.Steps, 4)
	for _, sr := range result.Steps {
		assert.Equal(t, StatusExplain, sr.Status)
	}
	assert.Equal(t, []string{"<A.address>", deployer}, result.Steps[2].Args)
	assert.Equal(t, []string{"A"}, result.Steps[2].DependsOn)
}

func TestExplainModeNeedsNoClient(t *testing.T) {
	_, err := Execute(context.Background(), bridgePlan(), makeCtx(t, map[string]string{"deployer": deployer}), ModeExplain, Options{})
	assert.NoError(t, err)

	_, err = Execute(context.Background(), bridgePlan(), makeCtx(t, map[string]string{"deployer": deployer}), ModeRun, Options{})
	assert.Error(t, err)
}

func TestExecuteRejectsInvalidPlan(t *testing.T) {
	_, err := Execute(context.Background(), bridgePlan(), makeCtx(t, map[string]string{}), ModeRun, Options{Client: &mockClient{}})
	assert.ErrorIs(t, err, dagerrors.ErrValidation)

	p := &plan.Plan{Name: "cycle", Steps: []plan.Step{
		{Name: "A", Args: []plan.Arg{plan.Ref("B")}},
		{Name: "B", Args: []plan.Arg{plan.Ref("A")}},
	}}
	_, err = Execute(context.Background(), p, makeCtx(t, nil), ModeRun, Options{Client: &mockClient{}})
	assert.ErrorIs(t, err, dagerrors.ErrValidation)
}

func TestExecuteOrdersForwardReferences(t *testing.T) {
	client := &mockClient{}
	p := &plan.Plan{Name: "fwd", Steps: []plan.Step{
		{Name: "L1", Args: []plan.Arg{plan.Ref("CT")}},
		{Name: "L2"},
		{Name: "CT"},
	}}

	result, err := Execute(context.Background(), p, makeCtx(t, nil), ModeDryRun, Options{Client: client})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"L2", "CT", "L1"}, client.contracts())
	assert.Equal(t, result.Addresses["CT"], client.calls[2].args[0].(common.Address).Hex())
}

func TestRunModeWritesRunRecord(t *testing.T) {
	client := &mockClient{}
	rc := makeCtx(t, map[string]string{"deployer": deployer})
	var notify bytes.Buffer

	result, err := Execute(context.Background(), bridgePlan(), rc, ModeRun, Options{Client: client, Notifier: &notify})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "run", result.Mode)
	require.Len(t, result.Artifacts, 1)

	base := filepath.Join(rc.WorkDir, ".deployseq", "runs", "test-run")
	assert.Equal(t, base, result.Artifacts[0])
	assert.FileExists(t, filepath.Join(base, "result.json"))
	for _, name := range []string{"A", "B", "L1", "L2"} {
		assert.FileExists(t, filepath.Join(base, "steps", name+".json"))
		assert.Equal(t, StatusConfirmed, statusOf(result, name))
	}

	data, err := os.ReadFile(filepath.Join(base, "steps", "A.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), result.Addresses["A"])
	assert.Equal(t, 4, strings.Count(notify.String(), "deployed to:"))
}

func TestRunModeFailureReportsStep(t *testing.T) {
	client := &mockClient{rejectConfirm: map[string]error{"L1": errors.New("execution reverted")}}
	rc := makeCtx(t, map[string]string{"deployer": deployer})

	result, err := Execute(context.Background(), bridgePlan(), rc, ModeRun, Options{Client: client})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "L1", result.FailedStep)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, dagerrors.DeploymentRejected, result.Errors[0].Type)
	assert.Equal(t, "confirm failed: execution reverted", result.Errors[0].Message)

	assert.Equal(t, StatusConfirmed, statusOf(result, "A"))
	assert.Equal(t, StatusConfirmed, statusOf(result, "B"))
	assert.Equal(t, StatusFailed, statusOf(result, "L1"))
	assert.Equal(t, StatusSkipped, statusOf(result, "L2"))
	assert.NotContains(t, result.Addresses, "L1")
	assert.NotContains(t, result.Addresses, "L2")

	base := result.Artifacts[0]
	assert.FileExists(t, filepath.Join(base, "steps", "B.json"))
	assert.NoFileExists(t, filepath.Join(base, "steps", "L1.json"))
}

func TestDryRunModeWritesNothing(t *testing.T) {
	client := &mockClient{dryRun: true}
	rc := makeCtx(t, map[string]string{"deployer": deployer})

	result, err := Execute(context.Background(), bridgePlan(), rc, ModeDryRun, Options{Client: client})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Artifacts)
	assert.Equal(t, StatusPredicted, statusOf(result, "L2"))
	assert.NoDirExists(t, filepath.Join(rc.WorkDir, ".deployseq"))
}

func statusOf(r *Result, name string) string {
	for _, sr := range r.Steps {
		if sr.Name == name {
			return sr.Status
		}
	}
	return ""
}
