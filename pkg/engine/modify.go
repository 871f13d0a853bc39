package engine

import (
	"context"
	"fmt"

	"github.com/glyphhq/glyph/pkg/binder"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/patch"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/glyphhq/glyph/pkg/region"
)

// Modify applies one natural-language edit to a session's template markup.
//
// The interpreter call is the slow, suspending step, so it runs outside the
// per-session lock: phase one reads the target region's markup under the
// lock, the interpreter is called unlocked, and phase two re-acquires the
// lock, verifies the region is unchanged since the read (failing with
// domain.ErrPatchConflict otherwise), applies the patch, re-renders and
// appends to the edit log. Every failure leaves the session untouched.
func (e *Engine) Modify(ctx context.Context, id, regionName, instruction string) (*domain.Session, error) {
	if e.interp == nil {
		return nil, fmt.Errorf("%w: no interpreter configured", domain.ErrInterpretation)
	}

	// Phase 1: snapshot the region under the lock.
	var snapshot string
	var req ports.InterpretRequest
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		s, err := e.loadActive(ctx, id)
		if err != nil {
			return err
		}
		if s.SourceURL != "" {
			return fmt.Errorf("%w: session renders from a url and has no editable markup", domain.ErrInvalidData)
		}
		ix, err := region.New(s.TemplateMarkup)
		if err != nil {
			return err
		}
		inner, ok := ix.Inner(s.TemplateMarkup, regionName)
		if !ok {
			return fmt.Errorf("%w: %q (regions: %v)", domain.ErrRegionNotFound, regionName, ix.Names())
		}
		snapshot = inner
		req = ports.InterpretRequest{
			Region:       regionName,
			Instruction:  instruction,
			RegionMarkup: inner,
			Intent:       s.Intent,
			Style:        s.Style,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Interpreter call, unlocked and bounded.
	p, err := e.interpret(ctx, id, req)
	if err != nil {
		return nil, err
	}
	e.sanitize(p)

	// Phase 2: re-validate and apply atomically.
	var out *domain.Session
	err = e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		s, err := e.loadActive(ctx, id)
		if err != nil {
			return err
		}
		ix, err := region.New(s.TemplateMarkup)
		if err != nil {
			return err
		}
		inner, ok := ix.Inner(s.TemplateMarkup, regionName)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrRegionNotFound, regionName)
		}
		if inner != snapshot {
			return fmt.Errorf("%w: region %q changed during interpretation", domain.ErrPatchConflict, regionName)
		}

		newMarkup, err := patch.Apply(s.TemplateMarkup, regionName, p)
		if err != nil {
			return err
		}
		rendered, err := binder.Bind(newMarkup, s.Data)
		if err != nil {
			return fmt.Errorf("%w: patched markup failed binding: %v", domain.ErrPatchConflict, err)
		}

		s.TemplateMarkup = newMarkup
		s.RenderedMarkup = rendered
		s.Modifications = append(s.Modifications, domain.Modification{
			Region:       regionName,
			Instruction:  instruction,
			PatchSummary: p.Summary(),
			AppliedAt:    e.now(),
		})
		if err := e.sessions.Store().Save(ctx, s); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
		out = s.Clone()
		return nil
	})
	if err != nil {
		e.fireSession(ctx, domain.EventModify, id, "", regionName, true)
		return nil, err
	}

	e.fireSession(ctx, domain.EventModify, id, out.TemplateID, regionName, false)
	e.logger.Info("session modified",
		"session_id", id,
		"region", regionName,
		"patch", out.Modifications[len(out.Modifications)-1].PatchSummary,
	)
	return out, nil
}

func (e *Engine) interpret(ctx context.Context, id string, req ports.InterpretRequest) (*domain.Patch, error) {
	ictx, cancel := context.WithTimeout(ctx, e.upstreamTimeout)
	defer cancel()

	started := e.now()
	p, err := e.interp.Interpret(ictx, req)
	e.fireUpstream(ctx, "interpreter", id, e.now().Sub(started), 0, err != nil)
	if err != nil {
		return nil, e.mapUpstreamErr(err, domain.ErrInterpretation)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInterpretation, err)
	}
	return p, nil
}

// sanitize runs interpreter-produced markup through the configured HTML
// policy. Placeholder text survives sanitization; region boundary comments
// do not, so payloads must not carry nested region markers when a policy is
// set.
func (e *Engine) sanitize(p *domain.Patch) {
	if e.sanitizer == nil {
		return
	}
	switch p.Kind {
	case domain.PatchReplaceRegion:
		p.Replace.Markup = e.sanitizer.Sanitize(p.Replace.Markup)
	case domain.PatchInsertRelative:
		p.Insert.Markup = e.sanitizer.Sanitize(p.Insert.Markup)
	}
}
