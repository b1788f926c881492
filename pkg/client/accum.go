package client

import (
	"encoding/json"
	"fmt"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/debug"
	"github.com/empfang-dev/empfang/pkg/observability"
)

// AccumulatorState is the lifecycle state of an Accumulator.
type AccumulatorState int

const (
	StateEmpty AccumulatorState = iota
	StateInProgress
	StateCompleted
	StateFailed
)

// String returns the state name.
func (s AccumulatorState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Accumulator folds an ordered sequence of stream events into one response
// resource. It must be driven by a single goroutine; independent streams
// use independent accumulators.
//
// After a terminal lifecycle event, further events return a
// ProtocolViolation and leave the finalized resource untouched.
type Accumulator struct {
	resp  *api.Response
	index map[string]int
	state AccumulatorState
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{index: make(map[string]int)}
}

// State returns the current lifecycle state.
func (a *Accumulator) State() AccumulatorState { return a.state }

// Snapshot returns a deep copy of the current resource, safe to hand to a
// caller while the accumulator keeps mutating its own copy. It returns nil
// before any event carrying state has been applied.
func (a *Accumulator) Snapshot() *api.Response {
	if a.resp == nil {
		return nil
	}
	return cloneResponse(a.resp)
}

// Apply folds one event into the resource. Events of unrecognized kinds
// are recorded and skipped; they are not an error.
func (a *Accumulator) Apply(ev *api.StreamEvent) error {
	if ev == nil {
		return nil
	}
	observability.StreamEventsTotal.WithLabelValues(string(ev.Type)).Inc()

	if a.state == StateCompleted || a.state == StateFailed {
		return &ProtocolViolation{Message: fmt.Sprintf("event %s after terminal state %s", ev.Type, a.state)}
	}

	if !api.KnownEventType(ev.Type) {
		debug.Log("accumulator", "skipping unrecognized event", "type", ev.Type)
		if a.state == StateEmpty {
			a.state = StateInProgress
		}
		return nil
	}

	if a.state == StateEmpty {
		a.state = StateInProgress
	}

	switch ev.Type {
	case api.EventResponseCreated, api.EventResponseQueued, api.EventResponseInProgress:
		if ev.Response != nil {
			if err := a.checkStatusTransition(ev.Response.Status); err != nil {
				return err
			}
		}
		a.applySnapshot(ev.Response)

	case api.EventResponseCompleted:
		if err := a.checkStatusTransition(api.ResponseStatusCompleted); err != nil {
			return err
		}
		a.applyTerminalSnapshot(ev.Response, api.ResponseStatusCompleted)
		a.state = StateCompleted

	case api.EventResponseIncomplete:
		if err := a.checkStatusTransition(api.ResponseStatusIncomplete); err != nil {
			return err
		}
		a.applyTerminalSnapshot(ev.Response, api.ResponseStatusIncomplete)
		a.state = StateCompleted

	case api.EventResponseFailed:
		if err := a.checkStatusTransition(api.ResponseStatusFailed); err != nil {
			return err
		}
		a.applyTerminalSnapshot(ev.Response, api.ResponseStatusFailed)
		a.state = StateFailed

	case api.EventError:
		a.ensureResponse()
		a.resp.Error = ev.Error
		a.resp.Status = api.ResponseStatusFailed
		a.state = StateFailed

	case api.EventOutputItemAdded, api.EventOutputItemDone:
		return a.applyItem(ev)

	case api.EventContentPartAdded, api.EventContentPartDone:
		return a.applyContentPart(ev)

	case api.EventOutputTextDelta:
		return a.applyTextDelta(ev, func(p *api.ContentPart) { p.Text += ev.Delta })

	case api.EventOutputTextDone:
		return a.applyTextDone(ev, func(p *api.ContentPart) { p.Text = ev.Text })

	case api.EventRefusalDelta:
		return a.applyTextDelta(ev, func(p *api.ContentPart) {
			p.Type = api.ContentTypeRefusal
			p.Refusal += ev.Delta
		})

	case api.EventRefusalDone:
		return a.applyTextDone(ev, func(p *api.ContentPart) {
			p.Type = api.ContentTypeRefusal
			p.Refusal = ev.Refusal
		})

	case api.EventOutputTextAnnotationAdded:
		return a.applyAnnotation(ev)

	case api.EventReasoningTextDelta:
		return a.applyReasoningDelta(ev, false, func(p *api.ContentPart) { p.Text += ev.Delta })

	case api.EventReasoningTextDone:
		return a.applyReasoningDelta(ev, false, func(p *api.ContentPart) { p.Text = ev.Text })

	case api.EventReasoningSummaryPartAdded, api.EventReasoningSummaryPartDone:
		return a.applyReasoningSummaryPart(ev)

	case api.EventReasoningSummaryTextDelta:
		return a.applyReasoningDelta(ev, true, func(p *api.ContentPart) { p.Text += ev.Delta })

	case api.EventReasoningSummaryTextDone:
		return a.applyReasoningDelta(ev, true, func(p *api.ContentPart) { p.Text = ev.Text })

	case api.EventFunctionCallArgsDelta:
		item := a.itemShell(ev.ItemID, api.ItemTypeFunctionCall)
		item.FunctionCall.Arguments += ev.Delta

	case api.EventFunctionCallArgsDone:
		idx, ok := a.index[ev.ItemID]
		if !ok {
			return &ProtocolViolation{Message: fmt.Sprintf("%s for unknown item %q", ev.Type, ev.ItemID)}
		}
		item := &a.resp.Output[idx]
		if item.FunctionCall == nil {
			item.FunctionCall = &api.FunctionCallData{}
		}
		item.FunctionCall.Arguments = ev.Arguments
	}

	return nil
}

// checkStatusTransition rejects lifecycle events whose status would move
// the response backwards or skip a required state. The first status a
// stream delivers is accepted as-is, since deltas may arrive before the
// creation snapshot, and a repeated status is idempotent.
func (a *Accumulator) checkStatusTransition(to api.ResponseStatus) error {
	var from api.ResponseStatus
	if a.resp != nil {
		from = a.resp.Status
	}
	if from == "" || to == "" || from == to {
		return nil
	}
	if apiErr := api.ValidateResponseTransition(from, to); apiErr != nil {
		return &ProtocolViolation{Message: apiErr.Message}
	}
	return nil
}

// applySnapshot replaces the resource with a lifecycle snapshot, keeping
// already accumulated output when the snapshot carries none.
func (a *Accumulator) applySnapshot(snap *api.Response) {
	if snap == nil {
		a.ensureResponse()
		return
	}
	prev := a.resp
	a.resp = cloneResponse(snap)
	if len(a.resp.Output) == 0 && prev != nil && len(prev.Output) > 0 {
		a.resp.Output = prev.Output
	} else {
		a.reindex()
	}
	if a.resp.Status == "" {
		a.resp.Status = api.ResponseStatusInProgress
	}
}

// applyTerminalSnapshot copies the final fields of a terminal lifecycle
// event over the accumulated resource.
func (a *Accumulator) applyTerminalSnapshot(snap *api.Response, status api.ResponseStatus) {
	a.ensureResponse()
	if snap != nil {
		if snap.ID != "" {
			a.resp.ID = snap.ID
		}
		if snap.Usage != nil {
			a.resp.Usage = snap.Usage
		}
		if snap.Error != nil {
			a.resp.Error = snap.Error
		}
		if snap.IncompleteDetails != nil {
			a.resp.IncompleteDetails = snap.IncompleteDetails
		}
		if snap.CompletedAt != nil {
			a.resp.CompletedAt = snap.CompletedAt
		}
		if snap.Model != "" {
			a.resp.Model = snap.Model
		}
		// A terminal snapshot with output is authoritative.
		if len(snap.Output) > 0 {
			a.resp.Output = cloneResponse(snap).Output
			a.reindex()
		}
	}
	a.resp.Status = status
	if a.resp.Error != nil && status == api.ResponseStatusCompleted {
		// Error payloads only accompany failed or incomplete responses.
		a.resp.Status = api.ResponseStatusIncomplete
	}
}

func (a *Accumulator) applyItem(ev *api.StreamEvent) error {
	a.ensureResponse()
	item := cloneItem(ev.Item)
	if item.Status == "" {
		if ev.Type == api.EventOutputItemDone {
			item.Status = api.ItemStatusCompleted
		} else {
			item.Status = api.ItemStatusInProgress
		}
	}
	if ev.Type == api.EventOutputItemDone && item.Status == api.ItemStatusInProgress {
		item.Status = api.ItemStatusCompleted
	}

	if idx, ok := a.index[item.ID]; ok && item.ID != "" {
		// Repeated added or done markers are idempotent, but an item
		// may not leave a terminal status once it reached one.
		if from := a.resp.Output[idx].Status; from != item.Status {
			if apiErr := api.ValidateItemTransition(from, item.Status); apiErr != nil {
				return &ProtocolViolation{Message: fmt.Sprintf("item %q: %s", item.ID, apiErr.Message)}
			}
		}
		a.resp.Output[idx] = item
		return nil
	}
	a.resp.Output = append(a.resp.Output, item)
	if item.ID != "" {
		a.index[item.ID] = len(a.resp.Output) - 1
	}
	return nil
}

func (a *Accumulator) applyContentPart(ev *api.StreamEvent) error {
	if ev.Type == api.EventContentPartDone {
		idx, ok := a.index[ev.ItemID]
		if !ok {
			return &ProtocolViolation{Message: fmt.Sprintf("%s for unknown item %q", ev.Type, ev.ItemID)}
		}
		item := &a.resp.Output[idx]
		part := a.partAt(item, ev.ContentIndex)
		if ev.Part != nil {
			*part = *ev.Part
		}
		return nil
	}

	item := a.itemShell(ev.ItemID, api.ItemTypeMessage)
	part := a.partAt(item, ev.ContentIndex)
	if ev.Part != nil && part.Text == "" && part.Refusal == "" {
		*part = *ev.Part
	}
	return nil
}

func (a *Accumulator) applyTextDelta(ev *api.StreamEvent, mutate func(*api.ContentPart)) error {
	item := a.itemShell(ev.ItemID, api.ItemTypeMessage)
	mutate(a.partAt(item, ev.ContentIndex))
	return nil
}

func (a *Accumulator) applyTextDone(ev *api.StreamEvent, mutate func(*api.ContentPart)) error {
	idx, ok := a.index[ev.ItemID]
	if !ok {
		return &ProtocolViolation{Message: fmt.Sprintf("%s for unknown item %q", ev.Type, ev.ItemID)}
	}
	item := &a.resp.Output[idx]
	part := a.partAt(item, ev.ContentIndex)
	mutate(part)
	if ev.Type == api.EventOutputTextDone && len(ev.Logprobs) > 0 {
		part.Logprobs = ev.Logprobs
	}
	return nil
}

func (a *Accumulator) applyAnnotation(ev *api.StreamEvent) error {
	idx, ok := a.index[ev.ItemID]
	if !ok {
		return &ProtocolViolation{Message: fmt.Sprintf("%s for unknown item %q", ev.Type, ev.ItemID)}
	}
	if ev.Annotation == nil {
		return nil
	}
	item := &a.resp.Output[idx]
	part := a.partAt(item, ev.ContentIndex)
	part.Annotations = append(part.Annotations, *ev.Annotation)
	return nil
}

func (a *Accumulator) applyReasoningDelta(ev *api.StreamEvent, summary bool, mutate func(*api.ContentPart)) error {
	item := a.itemShell(ev.ItemID, api.ItemTypeReasoning)
	r := item.Reasoning
	if summary {
		for len(r.Summary) <= ev.SummaryIndex {
			r.Summary = append(r.Summary, api.ContentPart{Type: api.ContentTypeSummaryText})
		}
		mutate(&r.Summary[ev.SummaryIndex])
		return nil
	}
	for len(r.Content) <= ev.ContentIndex {
		r.Content = append(r.Content, api.ContentPart{Type: api.ContentTypeReasoningText})
	}
	mutate(&r.Content[ev.ContentIndex])
	return nil
}

func (a *Accumulator) applyReasoningSummaryPart(ev *api.StreamEvent) error {
	item := a.itemShell(ev.ItemID, api.ItemTypeReasoning)
	r := item.Reasoning
	for len(r.Summary) <= ev.SummaryIndex {
		r.Summary = append(r.Summary, api.ContentPart{Type: api.ContentTypeSummaryText})
	}
	if ev.Part != nil {
		r.Summary[ev.SummaryIndex] = *ev.Part
	}
	return nil
}

// ensureResponse creates an empty in-progress resource if none exists yet.
// Streams may deliver deltas before the creation snapshot.
func (a *Accumulator) ensureResponse() {
	if a.resp == nil {
		a.resp = &api.Response{Status: api.ResponseStatusInProgress, Output: []api.Item{}}
	}
}

// itemShell returns the item with the given id, creating a placeholder of
// the given type when the stream has not introduced it yet.
func (a *Accumulator) itemShell(id string, typ api.ItemType) *api.Item {
	a.ensureResponse()
	if idx, ok := a.index[id]; ok {
		item := &a.resp.Output[idx]
		a.ensureVariant(item, typ)
		return item
	}
	item := api.Item{ID: id, Type: typ, Status: api.ItemStatusInProgress}
	a.resp.Output = append(a.resp.Output, item)
	idx := len(a.resp.Output) - 1
	if id != "" {
		a.index[id] = idx
	}
	shell := &a.resp.Output[idx]
	a.ensureVariant(shell, typ)
	return shell
}

// ensureVariant makes sure the variant struct matching the item type is
// allocated so delta application has a target.
func (a *Accumulator) ensureVariant(item *api.Item, typ api.ItemType) {
	switch typ {
	case api.ItemTypeMessage:
		if item.Message == nil {
			item.Message = &api.MessageData{Role: api.RoleAssistant}
		}
	case api.ItemTypeFunctionCall:
		if item.FunctionCall == nil {
			item.FunctionCall = &api.FunctionCallData{}
		}
	case api.ItemTypeReasoning:
		if item.Reasoning == nil {
			item.Reasoning = &api.ReasoningData{}
		}
	}
}

// partAt returns the content part at the given index of a message item,
// growing the content slice with output_text placeholders as needed.
func (a *Accumulator) partAt(item *api.Item, index int) *api.ContentPart {
	a.ensureVariant(item, api.ItemTypeMessage)
	for len(item.Message.Content) <= index {
		item.Message.Content = append(item.Message.Content, api.ContentPart{Type: api.ContentTypeOutputText})
	}
	return &item.Message.Content[index]
}

// reindex rebuilds the id-to-index side table from the current output.
func (a *Accumulator) reindex() {
	a.index = make(map[string]int, len(a.resp.Output))
	for i := range a.resp.Output {
		if id := a.resp.Output[i].ID; id != "" {
			a.index[id] = i
		}
	}
}

// cloneItem deep-copies an item through its wire codec so the stored
// output never aliases the caller's event.
func cloneItem(it *api.Item) api.Item {
	data, err := json.Marshal(it)
	if err != nil {
		return *it
	}
	var out api.Item
	if err := json.Unmarshal(data, &out); err != nil {
		return *it
	}
	return out
}

// cloneResponse deep-copies a response through its own wire codec, which
// already covers every variant including retained unknown payloads.
func cloneResponse(r *api.Response) *api.Response {
	data, err := json.Marshal(r)
	if err != nil {
		copied := *r
		return &copied
	}
	var out api.Response
	if err := json.Unmarshal(data, &out); err != nil {
		copied := *r
		return &copied
	}
	return &out
}
