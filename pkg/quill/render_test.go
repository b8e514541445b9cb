package quill

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, content string, data map[string]interface{}, opts Options) string {
	t.Helper()
	result, err := Process(context.Background(), content, data, opts)
	require.NoError(t, err)
	return result.Output
}

func TestRenderInterpolation(t *testing.T) {
	data := map[string]interface{}{
		"name": "Ada",
		"user": map[string]interface{}{"city": "London"},
		"n":    42.0,
	}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"simple", "Hello {{name}}!", "Hello Ada!"},
		{"dot path", "From {{user.city}}", "From London"},
		{"whole number", "n={{n}}", "n=42"},
		{"filter chain", "{{name | upper}}", "ADA"},
		{"literal passthrough", "plain text only", "plain text only"},
		{"unresolved path re-emits the tag", "x{{missing.y}}x", "x{{missing.y}}x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.content, data, Options{}))
		})
	}
}

func TestRenderIdempotence(t *testing.T) {
	// Rendered output contains no tags, so rendering it again is a no-op.
	data := map[string]interface{}{"status": "Done", "items": []interface{}{"a", "b"}}
	first := render(t, `{{#if status == "Done"}}✅{{else}}⏳{{/if}} {{#each items}}{{@index}}:{{this}};{{/each}}`, data, Options{})
	assert.Equal(t, "✅ 0:a;1:b;", first)
	assert.Equal(t, first, render(t, first, data, Options{}))
}

func TestRenderUnresolvedNonStrict(t *testing.T) {
	// An unresolved tag is re-emitted verbatim so the gap stays visible.
	got := render(t, "Hello {{nobody}}!", nil, Options{})
	assert.Equal(t, "Hello {{nobody}}!", got)
}

func TestRenderUnresolvedStrict(t *testing.T) {
	_, err := Process(context.Background(), "Hello {{nobody}}!", nil, Options{Strict: true})
	require.Error(t, err)
	assert.True(t, IsReferenceError(err))

	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "nobody", refErr.Name)
	assert.Equal(t, 6, refErr.Pos)
}

func TestRenderConditionals(t *testing.T) {
	tests := []struct {
		name    string
		content string
		data    map[string]interface{}
		want    string
	}{
		{
			"true branch",
			"{{#if ok}}yes{{else}}no{{/if}}",
			map[string]interface{}{"ok": true},
			"yes",
		},
		{
			"else branch",
			"{{#if ok}}yes{{else}}no{{/if}}",
			map[string]interface{}{"ok": false},
			"no",
		},
		{
			"else if chain picks first match",
			"{{#if n > 10}}big{{else if n > 5}}medium{{else}}small{{/if}}",
			map[string]interface{}{"n": 7},
			"medium",
		},
		{
			"no branch matches renders nothing",
			"a{{#if x}}y{{/if}}b",
			nil,
			"ab",
		},
		{
			"unselected branch side effects never appear",
			"{{#if ok}}{{missing}}{{else}}safe{{/if}}",
			map[string]interface{}{"ok": false},
			"safe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.content, tt.data, Options{}))
		})
	}
}

func TestRenderStrictSkipsUnselectedBranches(t *testing.T) {
	// Strict mode only evaluates the branch it takes.
	got := render(t, "{{#if ok}}{{name}}{{else}}skip{{/if}}",
		map[string]interface{}{"ok": true, "name": "Ada"}, Options{Strict: true})
	assert.Equal(t, "Ada", got)
}

func TestRenderLoops(t *testing.T) {
	data := map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
		"users": []interface{}{
			map[string]interface{}{"name": "Ada"},
			map[string]interface{}{"name": "Grace"},
		},
	}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"this binding", "{{#each items}}[{{this}}]{{/each}}", "[a][b][c]"},
		{"alias binding", "{{#each users as user}}{{user.name}};{{/each}}", "Ada;Grace;"},
		{"index", "{{#each items}}{{@index}}{{/each}}", "012"},
		{"one-based index", "{{#each items}}{{@index + 1}}{{/each}}", "123"},
		{"first and last", "{{#each items}}{{#if @first}}<{{/if}}{{this}}{{#if @last}}>{{/if}}{{/each}}", "<abc>"},
		{"length", "{{#each items}}{{@length}}{{/each}}", "333"},
		{"separator via last", "{{#each items}}{{this}}{{#if @index + 1 < @length}}, {{/if}}{{/each}}", "a, b, c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.content, data, Options{}))
		})
	}
}

func TestRenderLoopOverMap(t *testing.T) {
	m := NewOrderedMap()
	m.Set("b", NumberValue(2))
	m.Set("a", NumberValue(1))
	data := map[string]interface{}{"scores": m}

	got := render(t, "{{#each scores}}{{@key}}={{this}};{{/each}}", data, Options{})
	assert.Equal(t, "b=2;a=1;", got, "ordered maps iterate in insertion order")

	got = render(t, "{{#each plain}}{{@key}}{{/each}}",
		map[string]interface{}{"plain": map[string]interface{}{"z": 1, "a": 2, "m": 3}}, Options{})
	assert.Equal(t, "amz", got, "plain maps iterate in sorted key order")
}

func TestRenderNestedLoopShadowing(t *testing.T) {
	data := map[string]interface{}{
		"outer": []interface{}{"A", "B"},
		"inner": []interface{}{"x", "y"},
	}
	// The inner loop's @index shadows the outer one for its whole body.
	got := render(t, "{{#each outer}}{{@index}}:({{#each inner}}{{@index}}{{/each}}){{/each}}", data, Options{})
	assert.Equal(t, "0:(01)1:(01)", got)
}

func TestRenderLoopAliasReachesOuter(t *testing.T) {
	data := map[string]interface{}{
		"teams": []interface{}{
			map[string]interface{}{
				"name":    "core",
				"members": []interface{}{"ada", "grace"},
			},
		},
	}
	got := render(t, "{{#each teams as team}}{{#each team.members}}{{team.name}}/{{this}};{{/each}}{{/each}}", data, Options{})
	assert.Equal(t, "core/ada;core/grace;", got)
}

func TestRenderEmptyLoop(t *testing.T) {
	got := render(t, "a{{#each items}}x{{/each}}b", map[string]interface{}{"items": []interface{}{}}, Options{})
	assert.Equal(t, "ab", got)
}

func TestRenderLoopSourceErrors(t *testing.T) {
	t.Run("non-iterable in strict mode", func(t *testing.T) {
		_, err := Process(context.Background(), "{{#each n}}x{{/each}}",
			map[string]interface{}{"n": 42}, Options{Strict: true})
		require.Error(t, err)
		var typeErr *TypeError
		assert.ErrorAs(t, err, &typeErr)
	})

	t.Run("non-iterable in non-strict mode renders nothing", func(t *testing.T) {
		got := render(t, "a{{#each n}}x{{/each}}b", map[string]interface{}{"n": 42}, Options{})
		assert.Equal(t, "ab", got)
	})

	t.Run("missing source in strict mode", func(t *testing.T) {
		_, err := Process(context.Background(), "{{#each nope}}x{{/each}}", nil, Options{Strict: true})
		require.Error(t, err)
		assert.True(t, IsReferenceError(err))
	})

	t.Run("iteration cap", func(t *testing.T) {
		items := make([]interface{}, 5)
		_, err := Process(context.Background(), "{{#each items}}x{{/each}}",
			map[string]interface{}{"items": items}, Options{MaxIterations: 3})
		require.Error(t, err)
		var typeErr *TypeError
		assert.ErrorAs(t, err, &typeErr)
	})
}

func TestRenderScripts(t *testing.T) {
	data := map[string]interface{}{"price": 10.0, "qty": 3.0}
	got := render(t, "total: <% price * qty %>", data, Options{})
	assert.Equal(t, "total: 30", got)
}

func TestRenderScriptInsideLoop(t *testing.T) {
	data := map[string]interface{}{"items": []interface{}{2.0, 3.0}}
	got := render(t, "{{#each items}}<% this * 10.0 %>;{{/each}}", data, Options{})
	assert.Equal(t, "20;30;", got)
}

func TestRenderPrompts(t *testing.T) {
	content := "Dear {{prompt:name:Name?:Friend}}, from {{prompt:sender:Sender?}}"

	t.Run("collector values", func(t *testing.T) {
		collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
			require.Len(t, defs, 2)
			return map[string]string{"name": "Ada", "sender": "Grace"}, nil
		})
		result, err := Process(context.Background(), content, nil, Options{Collector: collector})
		require.NoError(t, err)
		assert.Equal(t, "Dear Ada, from Grace", result.Output)
		assert.Equal(t, map[string]string{"name": "Ada", "sender": "Grace"}, result.Prompts)
	})

	t.Run("no collector uses defaults", func(t *testing.T) {
		got := render(t, content, nil, Options{})
		assert.Equal(t, "Dear Friend, from ", got)
	})

	t.Run("text prompt default substitutes", func(t *testing.T) {
		got := render(t, "{{prompt:name:Q?:John}}", nil, Options{})
		assert.Equal(t, "John", got)
	})

	t.Run("cancellation aborts with no output", func(t *testing.T) {
		collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
			return nil, ErrPromptsCancelled
		})
		result, err := Process(context.Background(), content, nil, Options{Collector: collector})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPromptsCancelled)
		assert.Nil(t, result)
	})

	t.Run("context cancellation maps to the cancel signal", func(t *testing.T) {
		collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
			return nil, context.Canceled
		})
		_, err := Process(context.Background(), content, nil, Options{Collector: collector})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPromptsCancelled)
	})
}

func TestRenderPromptFeedsConditional(t *testing.T) {
	// Prompt substitution is purely textual and precedes block
	// evaluation, so a collected value can drive a conditional.
	content := "{{#if mode == 'formal'}}Dear Sir{{else}}Hey{{/if}} {{suggest:mode:Mode?:formal,casual}}"
	collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
		return map[string]string{"mode": "formal"}, nil
	})
	result, err := Process(context.Background(), content, nil, Options{Collector: collector})
	require.NoError(t, err)
	assert.Equal(t, "Dear Sir formal", result.Output)
}

func TestRenderPromptValueVisibleAsVariable(t *testing.T) {
	// Collected values join the environment, so they work in plain
	// interpolations and filter chains away from the prompt tag itself.
	content := "{{prompt:city:City?}} — again: {{city | upper}}"
	collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
		return map[string]string{"city": "london"}, nil
	})
	result, err := Process(context.Background(), content, nil, Options{Collector: collector})
	require.NoError(t, err)
	assert.Equal(t, "london — again: LONDON", result.Output)
}

func TestRenderHostDataWinsOverPromptValue(t *testing.T) {
	content := "{{prompt:name:Q?:x}}/{{name}}"
	collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
		return map[string]string{"name": "collected"}, nil
	})
	result, err := Process(context.Background(), content,
		map[string]interface{}{"name": "host"}, Options{Collector: collector})
	require.NoError(t, err)
	assert.Equal(t, "collected/host", result.Output,
		"the tag gets the collected value, the variable keeps the host binding")
}

func TestRenderSessionPrefill(t *testing.T) {
	content := "{{prompt:name:Name?:x}}"
	session := NewSession()
	session.Set("name", "Remembered")

	var asked bool
	collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
		asked = true
		return nil, nil
	})
	result, err := Process(context.Background(), content, nil, Options{Collector: collector, Session: session})
	require.NoError(t, err)
	assert.Equal(t, "Remembered", result.Output)
	assert.False(t, asked, "session-filled prompts are not re-asked")
}

func TestRenderSessionWrittenAfterSuccess(t *testing.T) {
	session := NewSession()

	collector := PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
		return nil, errors.New("collection failed")
	})
	_, err := Process(context.Background(), "{{prompt:a:Q?}}", nil, Options{Collector: collector, Session: session})
	require.Error(t, err)
	_, ok := session.Get("a")
	assert.False(t, ok, "failed collection leaves the session untouched")

	collector = PromptCollectorFunc(func(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
		return map[string]string{"a": "v"}, nil
	})
	_, err = Process(context.Background(), "{{prompt:a:Q?}}", nil, Options{Collector: collector, Session: session})
	require.NoError(t, err)
	got, ok := session.Get("a")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestRenderBestEffort(t *testing.T) {
	content := "a {{x | nope}} b <% 1 + %> c"
	result, err := Process(context.Background(), content, map[string]interface{}{"x": "v"}, Options{BestEffort: true})
	require.NoError(t, err)
	assert.Equal(t, "a {{x | nope}} b  c", result.Output)
	require.Len(t, result.Diagnostics, 2)
}

func TestRenderBestEffortKeepsStructuralErrorsFatal(t *testing.T) {
	_, err := Process(context.Background(), "{{#if a}}x", nil, Options{BestEffort: true})
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
}

func TestRenderFilterErrorIsFatalByDefault(t *testing.T) {
	_, err := Process(context.Background(), "{{x | nope}}", map[string]interface{}{"x": 1}, Options{})
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
}

func TestRenderDefaultFilterGuardsMissing(t *testing.T) {
	// Raw re-emission is reserved for plain interpolations; a filter
	// chain sees undefined so default() can fill the gap.
	got := render(t, "{{missing | default('n/a')}}", nil, Options{})
	assert.Equal(t, "n/a", got)

	got = render(t, "{{missing | upper}}", nil, Options{})
	assert.Equal(t, "", got, "undefined formats empty through a non-guarding chain")

	got = render(t, "{{empty | default('n/a')}}", map[string]interface{}{"empty": ""}, Options{})
	assert.Equal(t, "n/a", got, "a resolved falsy value flows into the filter chain")
}

func TestRenderUsesCache(t *testing.T) {
	cache := NewTemplateCache(10, 0)
	content := "Hello {{name}}!"
	for i := 0; i < 3; i++ {
		_, err := Process(context.Background(), content, map[string]interface{}{"name": "x"}, Options{Cache: cache})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestEngineProcess(t *testing.T) {
	engine := New()
	result, err := engine.Render(context.Background(), "Hi {{name | upper}}", map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hi ADA", result.Output)
}

func TestEngineCustomFilterOverridesBuiltin(t *testing.T) {
	engine := New()
	engine.RegisterFilter("upper", func(in Value, args []Value) (Value, error) {
		return StringValue("custom"), nil
	})
	result, err := engine.Render(context.Background(), "{{name | upper}}", map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "custom", result.Output)

	// The shared default registry is unaffected.
	fn, _ := DefaultFilterRegistry().Get("upper")
	got, err := fn(StringValue("ada"), nil)
	require.NoError(t, err)
	assert.Equal(t, "ADA", got.Str())
}

func TestEngineStrictModeFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrictMode = true
	engine := NewWithConfig(cfg)
	_, err := engine.Render(context.Background(), "{{missing}}", nil)
	require.Error(t, err)
	assert.True(t, IsReferenceError(err))
}

func TestEngineProcessTemplate(t *testing.T) {
	raw := "---\nname: Greeting\ncategory: letters\n---\nHello {{name}}!"
	engine := New()
	tpl, result, err := engine.ProcessTemplate(context.Background(), raw, map[string]interface{}{"name": "Ada"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Greeting", tpl.Name)
	assert.Equal(t, "Hello Ada!", result.Output)
}
