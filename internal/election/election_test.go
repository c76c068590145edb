/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package election

import (
	"context"
	"testing"
	"time"

	sysErrors "streamnode/internal/errors"
)

// startElectionQuickly runs StartElection to completion (blocking for the
// Manager's configured timeout, a few milliseconds in these tests) so it
// ends up with completed == false and currentTerm == the returned term, as
// if this node had just begun a candidacy — the state Vote's same-term
// branches (ElectionsOver, LeaderAlreadyElected, AlreadyVoted) actually
// exercise. A freshly constructed Manager starts with completed == true, so
// Vote alone never reaches those branches.
func startElectionQuickly(t *testing.T, m *Manager) uint64 {
	t.Helper()
	term := m.NextTerm()
	result := m.StartElection(context.Background(), term)
	if result.Kind != NoLeaderElected {
		t.Fatalf("startElectionQuickly: unexpected result %+v", result)
	}
	return term
}

func TestQuorum(t *testing.T) {
	cases := map[uint64]uint64{
		1: 1,
		2: 2,
		3: 2,
		4: 3,
		5: 3,
	}
	for nodesCount, want := range cases {
		m := NewManager(1, nodesCount, 10, 20)
		if got := m.Quorum(); got != want {
			t.Errorf("nodesCount=%d: Quorum() = %d, want %d", nodesCount, got, want)
		}
	}
}

func TestNextTermDoesNotMutate(t *testing.T) {
	m := NewManager(1, 3, 10, 20)
	if got := m.NextTerm(); got != 1 {
		t.Errorf("NextTerm() = %d, want 1", got)
	}
	if got := m.CurrentTerm(); got != 0 {
		t.Errorf("CurrentTerm() after NextTerm = %d, want unchanged 0", got)
	}
}

func TestSetTermOnlyIncreases(t *testing.T) {
	m := NewManager(1, 3, 10, 20)
	m.SetTerm(5)
	if got := m.CurrentTerm(); got != 5 {
		t.Fatalf("CurrentTerm() = %d, want 5", got)
	}
	m.SetTerm(3)
	if got := m.CurrentTerm(); got != 5 {
		t.Errorf("SetTerm should not regress term: CurrentTerm() = %d, want 5", got)
	}
}

func TestVoteRejectsStaleTerm(t *testing.T) {
	m := NewManager(1, 3, 10, 20)
	m.SetTerm(5)
	err := m.Vote(3, 2, 2)
	if sysErrors.GetCode(err) != sysErrors.InvalidTerm {
		t.Errorf("expected InvalidTerm, got %v", err)
	}
}

func TestVoteRejectsWhenElectionAlreadyCompleted(t *testing.T) {
	m := NewManager(1, 3, 10, 20)
	// A freshly constructed Manager starts with completed == true and term
	// == 0, mirroring the teacher's Election::default().
	err := m.Vote(0, 2, 3)
	if sysErrors.GetCode(err) != sysErrors.ElectionsOver {
		t.Errorf("expected ElectionsOver, got %v", err)
	}
}

func TestVoteRejectsWhenLeaderAlreadyElectedViaSetLeader(t *testing.T) {
	// SetLeader always marks the election completed alongside setting the
	// leader, so a same-term vote after it is rejected as ElectionsOver
	// (the completed check runs first) rather than LeaderAlreadyElected.
	m := NewManager(1, 3, 10, 20)
	if err := m.SetLeader(1, 9); err != nil {
		t.Fatalf("SetLeader: %v", err)
	}
	err := m.Vote(1, 2, 3)
	if sysErrors.GetCode(err) != sysErrors.ElectionsOver {
		t.Errorf("expected ElectionsOver, got %v", err)
	}
}

func TestVoteRejectsWhenLeaderAlreadyElectedDuringTally(t *testing.T) {
	// Reaching quorum marks the election completed and the leader set in
	// the same step, so a further same-term vote surfaces as ElectionsOver
	// rather than LeaderAlreadyElected — there is no reachable state, via
	// the public API, where hasLeader is true but completed is false.
	m := NewManager(1, 3, 10, 20) // quorum = 2
	term := startElectionQuickly(t, m)
	if err := m.Vote(term, 7, 10); err != nil {
		t.Fatalf("vote 1: %v", err)
	}
	if err := m.Vote(term, 7, 11); err != nil {
		t.Fatalf("vote 2: %v", err)
	}
	err := m.Vote(term, 7, 12)
	if sysErrors.GetCode(err) != sysErrors.ElectionsOver {
		t.Errorf("expected ElectionsOver once the election has completed, got %v", err)
	}
}

func TestVoteRejectsDoubleVoteFromSameNode(t *testing.T) {
	m := NewManager(1, 5, 10, 20)
	term := startElectionQuickly(t, m)
	if err := m.Vote(term, 2, 10); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	err := m.Vote(term, 3, 10)
	if sysErrors.GetCode(err) != sysErrors.AlreadyVoted {
		t.Errorf("expected AlreadyVoted, got %v", err)
	}
}

func TestVoteElectsLeaderAtQuorum(t *testing.T) {
	m := NewManager(1, 3, 10, 20) // quorum = 2
	term := startElectionQuickly(t, m)
	if err := m.Vote(term, 7, 10); err != nil {
		t.Fatalf("vote 1: %v", err)
	}
	if leaderID, ok := m.LeaderID(); ok {
		t.Fatalf("leader elected too early: %d", leaderID)
	}
	if err := m.Vote(term, 7, 11); err != nil {
		t.Fatalf("vote 2: %v", err)
	}
	leaderID, ok := m.LeaderID()
	if !ok || leaderID != 7 {
		t.Errorf("LeaderID() = (%d, %v), want (7, true)", leaderID, ok)
	}
}

func TestHasMajorityVotes(t *testing.T) {
	m := NewManager(1, 5, 10, 20) // quorum = 3
	term := startElectionQuickly(t, m)
	if err := m.Vote(term, 7, 10); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if m.HasMajorityVotes(term, 7) {
		t.Fatal("expected no majority with a single vote")
	}
	if err := m.Vote(term, 7, 11); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := m.Vote(term, 7, 12); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if !m.HasMajorityVotes(term, 7) {
		t.Error("expected majority with three votes out of five (quorum 3)")
	}
	if m.HasMajorityVotes(term+1, 7) {
		t.Error("HasMajorityVotes should be false for a non-current term")
	}
}

func TestSetLeaderRejectsStaleTerm(t *testing.T) {
	m := NewManager(1, 3, 10, 20)
	m.SetTerm(5)
	err := m.SetLeader(3, 9)
	if sysErrors.GetCode(err) != sysErrors.LeaderRejected {
		t.Errorf("expected LeaderRejected, got %v", err)
	}
}

func TestSetLeaderIgnoresSecondCandidate(t *testing.T) {
	m := NewManager(1, 3, 10, 20)
	if err := m.SetLeader(1, 9); err != nil {
		t.Fatalf("SetLeader: %v", err)
	}
	if err := m.SetLeader(1, 10); err != nil {
		t.Fatalf("SetLeader second call should not error: %v", err)
	}
	leaderID, ok := m.LeaderID()
	if !ok || leaderID != 9 {
		t.Errorf("LeaderID() = (%d, %v), want (9, true) — second leader should be ignored", leaderID, ok)
	}
}

func TestStartElectionNoVotesYieldsNoLeader(t *testing.T) {
	m := NewManager(1, 3, 1, 2)
	result := m.StartElection(context.Background(), m.NextTerm())
	if result.Kind != NoLeaderElected {
		t.Errorf("result.Kind = %v, want NoLeaderElected", result.Kind)
	}
}

func TestStartElectionObservesTermChangeDuringSleep(t *testing.T) {
	m := NewManager(1, 3, 50, 50)
	term := m.NextTerm()

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- m.StartElection(context.Background(), term)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := m.Vote(term+1, 99, 5); err != nil {
		t.Fatalf("Vote during sleep: %v", err)
	}

	select {
	case result := <-resultCh:
		if result.Kind != TermChanged {
			t.Errorf("result.Kind = %v, want TermChanged", result.Kind)
		}
		if result.Term != term+1 {
			t.Errorf("result.Term = %d, want %d", result.Term, term+1)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("StartElection did not return in time")
	}
}

func TestStartElectionRespectsContextCancellation(t *testing.T) {
	m := NewManager(1, 3, 5000, 5000)
	ctx, cancel := context.WithCancel(context.Background())

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- m.StartElection(ctx, m.NextTerm())
	}()

	cancel()

	select {
	case <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("StartElection did not return promptly after context cancellation")
	}
}

func TestNewManagerPanicsOnInvalidTimeoutRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for from > to")
		}
	}()
	NewManager(1, 3, 20, 10)
}
