package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/llm"
	"github.com/rs/zerolog"
)

// Caller is the authenticated account sending a message.
type Caller struct {
	Enrollment string
	Role       models.RoleType
}

// AssistantReply is the answer to one chat message.
type AssistantReply struct {
	Reply  string               `json:"reply"`
	Tool   string               `json:"tool,omitempty"`
	Result *dto.OperationResult `json:"result,omitempty"`
}

// AssistantService routes free-text messages to grade operations through the
// language model's function calling.
type AssistantService interface {
	HandleMessage(ctx context.Context, caller Caller, message string) (*AssistantReply, error)
}

type toolHandler func(ctx context.Context, caller Caller, args map[string]any) *dto.OperationResult

type assistantTool struct {
	spec           llm.Tool
	instructorOnly bool
	handle         toolHandler
}

type assistantServiceImpl struct {
	model   llm.LanguageModel
	grades  GradeService
	history HistoryService
	cutoff  float64
	timeout time.Duration
	tools   map[string]assistantTool
	order   []string
	logger  zerolog.Logger
}

// NewAssistantService creates the router.
func NewAssistantService(
	model llm.LanguageModel,
	grades GradeService,
	history HistoryService,
	cutoff float64,
	timeout time.Duration,
	logger zerolog.Logger,
) AssistantService {
	s := &assistantServiceImpl{
		model:   model,
		grades:  grades,
		history: history,
		cutoff:  cutoff,
		timeout: timeout,
		logger:  logger,
	}
	s.registerTools()
	return s
}

const (
	toolHistory       = "get_academic_history"
	toolStudyMaterial = "generate_study_material"
	toolPostPartial   = "post_partial_score"
	toolClearPartial  = "clear_partial_score"
	toolPostProject   = "post_project_score"
	toolPostAbsences  = "post_absences"
	toolSetCompletion = "set_completion"
)

var (
	paramEnrollment = llm.Param{Name: "enrollment", Type: llm.TypeString, Required: true, Description: "Student enrollment code"}
	paramCourse     = llm.Param{Name: "course", Type: llm.TypeString, Required: true, Description: "Course name exactly as in the history"}
	paramPartial    = llm.Param{Name: "partial", Type: llm.TypeString, Required: true, Enum: []string{"partial1", "partial2"}, Description: "Which partial score"}
	paramScore      = llm.Param{Name: "score", Type: llm.TypeNumber, Required: true, Description: "Score between 0.0 and 10.0"}
)

func (s *assistantServiceImpl) registerTools() {
	s.tools = make(map[string]assistantTool)
	add := func(t assistantTool) {
		s.tools[t.spec.Name] = t
		s.order = append(s.order, t.spec.Name)
	}

	add(assistantTool{
		spec: llm.Tool{
			Name:        toolHistory,
			Description: "Returns the academic history of a student: partial scores, averages, absences and approval status per course.",
			Params:      []llm.Param{{Name: "enrollment", Type: llm.TypeString, Description: "Student enrollment code, defaults to the caller"}},
		},
		handle: s.runHistory,
	})
	add(assistantTool{
		spec: llm.Tool{
			Name:        toolStudyMaterial,
			Description: "Generates concise study material about a topic.",
			Params:      []llm.Param{{Name: "topic", Type: llm.TypeString, Required: true, Description: "Topic to study"}},
		},
		handle: s.runStudyMaterial,
	})
	add(assistantTool{
		spec: llm.Tool{
			Name:        toolPostPartial,
			Description: "Posts a partial score for a standard course and recomputes its average.",
			Params:      []llm.Param{paramEnrollment, paramCourse, paramPartial, paramScore},
		},
		instructorOnly: true,
		handle:         s.runPostPartial,
	})
	add(assistantTool{
		spec: llm.Tool{
			Name:        toolClearPartial,
			Description: "Clears a partial score of a standard course, leaving its average undefined.",
			Params:      []llm.Param{paramEnrollment, paramCourse, paramPartial},
		},
		instructorOnly: true,
		handle:         s.runClearPartial,
	})
	add(assistantTool{
		spec: llm.Tool{
			Name:        toolPostProject,
			Description: "Posts the semester project score on the project course and recomputes every standard course of that semester.",
			Params:      []llm.Param{paramEnrollment, paramCourse, paramScore},
		},
		instructorOnly: true,
		handle:         s.runPostProject,
	})
	add(assistantTool{
		spec: llm.Tool{
			Name:        toolPostAbsences,
			Description: "Sets the absence count of a student in a course.",
			Params: []llm.Param{paramEnrollment, paramCourse,
				{Name: "absences", Type: llm.TypeInteger, Required: true, Description: "Number of absences, zero or more"}},
		},
		instructorOnly: true,
		handle:         s.runPostAbsences,
	})
	add(assistantTool{
		spec: llm.Tool{
			Name:        toolSetCompletion,
			Description: "Marks a supplementary activity as completed or not completed.",
			Params: []llm.Param{paramEnrollment, paramCourse,
				{Name: "completed", Type: llm.TypeBoolean, Required: true, Description: "Whether the activity is done"}},
		},
		instructorOnly: true,
		handle:         s.runSetCompletion,
	})
}

// toolsFor filters the tools by role. Students never see mutations.
func (s *assistantServiceImpl) toolsFor(role models.RoleType) []llm.Tool {
	var tools []llm.Tool
	for _, name := range s.order {
		t := s.tools[name]
		if t.instructorOnly && role != models.RoleInstructor {
			continue
		}
		tools = append(tools, t.spec)
	}
	return tools
}

func (s *assistantServiceImpl) instructions(caller Caller) string {
	var b strings.Builder
	b.WriteString("You are an academic assistant for a grade-tracking system. Be concise and informative. ")
	fmt.Fprintf(&b, "The approval cutoff is %.1f. Supplementary activities are only completed or not completed. ", s.cutoff)
	if caller.Role == models.RoleInstructor {
		b.WriteString("You are talking to an instructor. You can show any student's history, generate study material, " +
			"and post partial scores, project scores, absences and completion flags. ")
	} else {
		fmt.Fprintf(&b, "You are talking to the student with enrollment %s. You can show their own history and "+
			"generate study material. You cannot post or change grades. ", caller.Enrollment)
	}
	b.WriteString("Use a tool when the request needs one. If required data such as an enrollment or course is missing, ask for it. " +
		"Otherwise answer directly.")
	return b.String()
}

func (s *assistantServiceImpl) HandleMessage(ctx context.Context, caller Caller, message string) (*AssistantReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.InvalidArgument(nil, "Message cannot be empty")
	}
	caller.Enrollment = models.NormalizeEnrollment(caller.Enrollment)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	chat := s.model.StartChat(s.instructions(caller), s.toolsFor(caller.Role))
	reply, err := chat.Send(ctx, message)
	if err != nil {
		return nil, s.modelError(err)
	}
	if len(reply.Calls) == 0 {
		return &AssistantReply{Reply: reply.Text}, nil
	}

	call := reply.Calls[0]
	result := s.execute(ctx, caller, call)

	s.logger.Info().
		Str("enrollment", caller.Enrollment).
		Str("role", string(caller.Role)).
		Str("tool", call.Name).
		Str("status", string(result.Status)).
		Str("kind", string(result.Kind)).
		Msg("Assistant tool executed")

	if !result.Succeeded() {
		return &AssistantReply{Reply: result.Message, Tool: call.Name, Result: result}, nil
	}

	final, err := chat.SendToolResult(ctx, call.Name, toolPayload(result))
	if err != nil || final.Text == "" {
		if err != nil {
			s.logger.Warn().Err(err).Str("tool", call.Name).Msg("Model failed to phrase tool result")
		}
		return &AssistantReply{Reply: result.Message, Tool: call.Name, Result: result}, nil
	}
	return &AssistantReply{Reply: final.Text, Tool: call.Name, Result: result}, nil
}

// execute runs a requested call. Unknown and forbidden tools fail like any
// other tool error.
func (s *assistantServiceImpl) execute(ctx context.Context, caller Caller, call llm.FunctionCall) *dto.OperationResult {
	t, ok := s.tools[call.Name]
	if !ok {
		return dto.Failed(apperrors.InvalidArgument(nil, fmt.Sprintf("Unknown action %q", call.Name)))
	}
	if t.instructorOnly && caller.Role != models.RoleInstructor {
		return dto.Failed(apperrors.NewForbiddenError("Only instructors can change grades"))
	}
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	return t.handle(ctx, caller, args)
}

func (s *assistantServiceImpl) modelError(err error) error {
	s.logger.Error().Err(err).Msg("Language model call failed")
	return apperrors.ServiceUnavailable(err, "The assistant is temporarily unavailable, please try again")
}

// toolPayload converts the result into the JSON object shape the model
// expects.
func toolPayload(result *dto.OperationResult) map[string]any {
	raw, err := json.Marshal(result)
	if err != nil {
		return map[string]any{"status": string(result.Status), "message": result.Message}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{"status": string(result.Status), "message": result.Message}
	}
	return payload
}

func (s *assistantServiceImpl) runHistory(ctx context.Context, caller Caller, args map[string]any) *dto.OperationResult {
	enrollment, _ := stringArg(args, "enrollment")
	if enrollment == "" {
		enrollment = caller.Enrollment
	}
	if caller.Role != models.RoleInstructor && models.NormalizeEnrollment(enrollment) != caller.Enrollment {
		return dto.Failed(apperrors.NewForbiddenError("Students can only view their own history"))
	}

	history, err := s.history.GetHistory(ctx, enrollment)
	if err != nil {
		return dto.Failed(err)
	}
	return dto.OK(fmt.Sprintf("Academic history of %s", history.FullName), history)
}

func (s *assistantServiceImpl) runStudyMaterial(ctx context.Context, _ Caller, args map[string]any) *dto.OperationResult {
	topic, err := requireString(args, "topic")
	if err != nil {
		return dto.Failed(err)
	}
	prompt := fmt.Sprintf("Write concise study material about %q. Include: 1. a short summary, "+
		"2. three key points, 3. one practice exercise with its answer. Keep an informal academic tone.", topic)

	material, err := s.model.Generate(ctx, prompt)
	if err != nil {
		return dto.Failed(s.modelError(err))
	}
	return dto.OK(material, map[string]string{"topic": topic, "material": material})
}

func (s *assistantServiceImpl) runPostPartial(ctx context.Context, _ Caller, args map[string]any) *dto.OperationResult {
	enrollment, course, err := pairArgs(args)
	if err != nil {
		return dto.Failed(err)
	}
	partial, err := requireString(args, "partial")
	if err != nil {
		return dto.Failed(err)
	}
	score, err := requireScore(args, "score")
	if err != nil {
		return dto.Failed(err)
	}

	res, err := s.grades.PostPartial(ctx, enrollment, course, partial, score)
	if err != nil {
		return dto.Failed(err)
	}
	msg := fmt.Sprintf("%s of %s in %s set to %.2f, average pending", res.Partial, res.Enrollment, res.Course, *res.Score)
	if !res.Pending {
		msg = fmt.Sprintf("%s of %s in %s set to %.2f, average %.2f (%s)", res.Partial, res.Enrollment, res.Course, *res.Score, *res.Average, res.Status)
	}
	return dto.OK(msg, res)
}

func (s *assistantServiceImpl) runClearPartial(ctx context.Context, _ Caller, args map[string]any) *dto.OperationResult {
	enrollment, course, err := pairArgs(args)
	if err != nil {
		return dto.Failed(err)
	}
	partial, err := requireString(args, "partial")
	if err != nil {
		return dto.Failed(err)
	}

	res, err := s.grades.ClearPartial(ctx, enrollment, course, partial)
	if err != nil {
		return dto.Failed(err)
	}
	return dto.OK(fmt.Sprintf("%s of %s in %s cleared", res.Partial, res.Enrollment, res.Course), res)
}

func (s *assistantServiceImpl) runPostProject(ctx context.Context, _ Caller, args map[string]any) *dto.OperationResult {
	enrollment, course, err := pairArgs(args)
	if err != nil {
		return dto.Failed(err)
	}
	score, err := requireScore(args, "score")
	if err != nil {
		return dto.Failed(err)
	}

	res, err := s.grades.PostProjectScore(ctx, enrollment, course, score)
	if err != nil {
		return dto.Failed(err)
	}
	return dto.OK(fmt.Sprintf("Project score of %s for semester %d set to %.2f, %d courses recomputed",
		res.Enrollment, res.Semester, res.Score, res.Recomputed), res)
}

func (s *assistantServiceImpl) runPostAbsences(ctx context.Context, _ Caller, args map[string]any) *dto.OperationResult {
	enrollment, course, err := pairArgs(args)
	if err != nil {
		return dto.Failed(err)
	}
	n, err := requireNumber(args, "absences")
	if err != nil {
		return dto.Failed(err)
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return dto.Failed(apperrors.InvalidArgument(nil, "Absences must be a whole number"))
	}

	res, err := s.grades.PostAbsences(ctx, enrollment, course, int(n))
	if err != nil {
		return dto.Failed(err)
	}
	return dto.OK(fmt.Sprintf("Absences of %s in %s set to %d", res.Enrollment, res.Course, res.Absences), res)
}

func (s *assistantServiceImpl) runSetCompletion(ctx context.Context, _ Caller, args map[string]any) *dto.OperationResult {
	enrollment, course, err := pairArgs(args)
	if err != nil {
		return dto.Failed(err)
	}
	completed, err := requireBool(args, "completed")
	if err != nil {
		return dto.Failed(err)
	}

	res, err := s.grades.SetCompletion(ctx, enrollment, course, completed)
	if err != nil {
		return dto.Failed(err)
	}
	return dto.OK(fmt.Sprintf("%s of %s marked %s", res.Course, res.Enrollment, res.Status), res)
}

func missingArg(name string) error {
	return apperrors.InvalidArgument(nil, fmt.Sprintf("Missing or invalid %s", name))
}

func stringArg(args map[string]any, name string) (string, bool) {
	switch v := args[name].(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func requireString(args map[string]any, name string) (string, error) {
	v, ok := stringArg(args, name)
	if !ok {
		return "", missingArg(name)
	}
	return v, nil
}

func pairArgs(args map[string]any) (string, string, error) {
	enrollment, err := requireString(args, "enrollment")
	if err != nil {
		return "", "", err
	}
	course, err := requireString(args, "course")
	if err != nil {
		return "", "", err
	}
	return enrollment, course, nil
}

// requireScore prefers the grading parser. A number it rejects is passed on
// as is so the grade operation reports the range error.
func requireScore(args map[string]any, name string) (float64, error) {
	if v, ok := grading.ParseScore(args[name]); ok {
		return v, nil
	}
	return requireNumber(args, name)
}

// requireNumber accepts JSON numbers and numeric strings, with a decimal
// comma allowed. Range checks are left to the grade operations.
func requireNumber(args map[string]any, name string) (float64, error) {
	switch v := args[name].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err == nil {
			return f, nil
		}
	case string:
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(v), ",", ".", 1), 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, missingArg(name)
}

func requireBool(args map[string]any, name string) (bool, error) {
	switch v := args[name].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b, nil
		}
	}
	return false, missingArg(name)
}
