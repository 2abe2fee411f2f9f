package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel answers the first Send with a scripted reply.
type fakeModel struct {
	reply       *llm.Reply
	sendErr     error
	phrased     string
	generated   string
	generateErr error

	instructions string
	tools        []llm.Tool
	toolResults  []map[string]any
	prompts      []string
}

func (m *fakeModel) StartChat(instructions string, tools []llm.Tool) llm.ChatSession {
	m.instructions = instructions
	m.tools = tools
	return &fakeSession{m: m}
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.generated, m.generateErr
}

func (m *fakeModel) Close() error { return nil }

func (m *fakeModel) toolNames() []string {
	var names []string
	for _, t := range m.tools {
		names = append(names, t.Name)
	}
	return names
}

type fakeSession struct {
	m *fakeModel
}

func (s *fakeSession) Send(context.Context, string) (*llm.Reply, error) {
	if s.m.sendErr != nil {
		return nil, s.m.sendErr
	}
	return s.m.reply, nil
}

func (s *fakeSession) SendToolResult(_ context.Context, _ string, result map[string]any) (*llm.Reply, error) {
	s.m.toolResults = append(s.m.toolResults, result)
	return &llm.Reply{Text: s.m.phrased}, nil
}

func callReply(name string, args map[string]any) *llm.Reply {
	return &llm.Reply{Calls: []llm.FunctionCall{{Name: name, Args: args}}}
}

var (
	student    = Caller{Enrollment: "s100", Role: models.RoleStudent}
	instructor = Caller{Enrollment: "T900", Role: models.RoleInstructor}
)

func newTestAssistant(t *testing.T, model *fakeModel) (AssistantService, *testServices) {
	t.Helper()
	ts := newTestServices(t)
	return NewAssistantService(model, ts.grades, ts.history, grading.DefaultCutoff, time.Second, zerolog.Nop()), ts
}

func TestAssistantToolsByRole(t *testing.T) {
	model := &fakeModel{reply: &llm.Reply{Text: "hello"}}
	svc, _ := newTestAssistant(t, model)

	_, err := svc.HandleMessage(context.Background(), student, "hi")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{toolHistory, toolStudyMaterial}, model.toolNames())
	assert.Contains(t, model.instructions, "S100")

	_, err = svc.HandleMessage(context.Background(), instructor, "hi")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		toolHistory, toolStudyMaterial, toolPostPartial, toolClearPartial,
		toolPostProject, toolPostAbsences, toolSetCompletion,
	}, model.toolNames())
}

func TestAssistantPlainAnswer(t *testing.T) {
	model := &fakeModel{reply: &llm.Reply{Text: "The cutoff is 7.0"}}
	svc, _ := newTestAssistant(t, model)

	reply, err := svc.HandleMessage(context.Background(), student, "what is the cutoff?")
	require.NoError(t, err)
	assert.Equal(t, "The cutoff is 7.0", reply.Reply)
	assert.Empty(t, reply.Tool)
	assert.Nil(t, reply.Result)
}

func TestAssistantInstructorPostsPartial(t *testing.T) {
	model := &fakeModel{
		reply: callReply(toolPostPartial, map[string]any{
			"enrollment": "S100", "course": "Algorithms", "partial": "partial1", "score": "7,5",
		}),
		phrased: "Done, Ada now has 7.5 in the first partial.",
	}
	svc, ts := newTestAssistant(t, model)

	reply, err := svc.HandleMessage(context.Background(), instructor, "give S100 7,5 in algorithms p1")
	require.NoError(t, err)
	assert.Equal(t, "Done, Ada now has 7.5 in the first partial.", reply.Reply)
	assert.Equal(t, toolPostPartial, reply.Tool)
	require.True(t, reply.Result.Succeeded())
	require.Len(t, model.toolResults, 1)
	assert.Equal(t, "ok", model.toolResults[0]["status"])

	assert.Equal(t, fp(7.5), getRecordT(t, ts.store, "S100", "Algorithms").Partial1)
}

func TestAssistantToolFailureReturnedDirectly(t *testing.T) {
	model := &fakeModel{
		reply: callReply(toolPostPartial, map[string]any{
			"enrollment": "S100", "course": "Algorithms", "partial": "partial1", "score": 11.0,
		}),
		phrased: "should not be used",
	}
	svc, ts := newTestAssistant(t, model)

	reply, err := svc.HandleMessage(context.Background(), instructor, "give S100 11")
	require.NoError(t, err)
	require.NotNil(t, reply.Result)
	assert.Equal(t, dto.StatusError, reply.Result.Status)
	assert.Equal(t, apperrors.KindInvalidArgument, reply.Result.Kind)
	assert.Contains(t, reply.Reply, "between 0.0 and 10.0")
	assert.Empty(t, model.toolResults)
	assert.Nil(t, getRecordT(t, ts.store, "S100", "Algorithms").Partial1)
}

func TestAssistantStudentRestrictions(t *testing.T) {
	tests := []struct {
		name  string
		reply *llm.Reply
	}{
		{"other student's history", callReply(toolHistory, map[string]any{"enrollment": "S200"})},
		{"mutation tool", callReply(toolPostAbsences, map[string]any{"enrollment": "S100", "course": "Algorithms", "absences": 0.0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{reply: tt.reply}
			svc, ts := newTestAssistant(t, model)

			reply, err := svc.HandleMessage(context.Background(), student, "please")
			require.NoError(t, err)
			assert.Equal(t, apperrors.KindPermissionDenied, reply.Result.Kind)
			assert.Empty(t, model.toolResults)
			assert.Nil(t, getRecordT(t, ts.store, "S100", "Algorithms").Absences)
		})
	}
}

func TestAssistantOwnHistory(t *testing.T) {
	model := &fakeModel{reply: callReply(toolHistory, nil), phrased: "Here is your history."}
	svc, _ := newTestAssistant(t, model)

	reply, err := svc.HandleMessage(context.Background(), student, "show my grades")
	require.NoError(t, err)
	assert.Equal(t, "Here is your history.", reply.Reply)
	require.True(t, reply.Result.Succeeded())
	history, ok := reply.Result.Data.(*dto.HistoryResponse)
	require.True(t, ok)
	assert.Equal(t, "S100", history.Enrollment)
}

func TestAssistantArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		tool string
	}{
		{"missing course", map[string]any{"enrollment": "S100", "partial": "partial1", "score": 5.0}, toolPostPartial},
		{"fractional absences", map[string]any{"enrollment": "S100", "course": "Algorithms", "absences": 2.5}, toolPostAbsences},
		{"non boolean completion", map[string]any{"enrollment": "S100", "course": "Study Skills", "completed": "maybe"}, toolSetCompletion},
		{"unknown tool", map[string]any{}, "drop_course"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{reply: callReply(tt.tool, tt.args)}
			svc, _ := newTestAssistant(t, model)

			reply, err := svc.HandleMessage(context.Background(), instructor, "do it")
			require.NoError(t, err)
			assert.Equal(t, apperrors.KindInvalidArgument, reply.Result.Kind)
		})
	}
}

func TestRequireScore(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{name: "json float", in: 7.5, want: 7.5},
		{name: "decimal comma", in: " 6,25 ", want: 6.25},
		{name: "integer string", in: "8", want: 8},
		{name: "out of range passes through", in: 11.0, want: 11},
		{name: "out of range string passes through", in: "12,5", want: 12.5},
		{name: "missing", in: nil, wantErr: true},
		{name: "garbage", in: "seven", wantErr: true},
		{name: "boolean", in: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := requireScore(map[string]any{"score": tt.in}, "score")
			if tt.wantErr {
				assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssistantStudyMaterial(t *testing.T) {
	model := &fakeModel{
		reply:     callReply(toolStudyMaterial, map[string]any{"topic": "binary trees"}),
		generated: "Binary trees are...",
		phrased:   "Here is some material on binary trees.",
	}
	svc, _ := newTestAssistant(t, model)

	reply, err := svc.HandleMessage(context.Background(), student, "help me study binary trees")
	require.NoError(t, err)
	assert.Equal(t, "Here is some material on binary trees.", reply.Reply)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "binary trees")
}

func TestAssistantModelErrors(t *testing.T) {
	model := &fakeModel{sendErr: errors.Join(llm.ErrUnavailable, errors.New("quota exceeded"))}
	svc, _ := newTestAssistant(t, model)

	_, err := svc.HandleMessage(context.Background(), student, "hello")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindServiceUnavailable, apperrors.KindOf(err))
	assert.NotContains(t, apperrors.Message(err), "quota")

	_, err = svc.HandleMessage(context.Background(), student, "   ")
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}
