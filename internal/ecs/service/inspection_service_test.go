package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/jimp5978/dshi-field-app/internal/ecs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2025-07-10"

func TestInspectionCreate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	worker := env.user(t, "kim", 1)

	// 둘 다 FIT-UP, FINAL 완료 → 다음은 ARUP FINAL
	testutil.SeedAssembly(t, env.db, "SA201", "BEAM", 100, testDate, testDate)
	testutil.SeedAssembly(t, env.db, "SA202", "BEAM", 200, testDate, testDate)
	testutil.SeedAssembly(t, env.db, "SA203", "POST", 50, testDate)

	t.Run("validation before any lookup", func(t *testing.T) {
		_, err := env.svc.Inspection.Create(ctx, worker, CreateInput{RequestDate: testDate})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA201"}})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA201"}, RequestDate: "2025/07/10"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA201", "NOPE"}, RequestDate: testDate})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, err.Error(), "NOPE")
	})

	t.Run("mixed next stage", func(t *testing.T) {
		_, err := env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA201", "SA203"}, RequestDate: testDate})
		assert.Equal(t, apperr.KindIncompatibleBatch, apperr.KindOf(err))
	})

	t.Run("type must match next stage", func(t *testing.T) {
		_, err := env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA201"}, InspectionType: "GALV", RequestDate: testDate})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	events := make(chan sse.Event, 4)
	env.hub.Register(&sse.Client{ID: "watch", Events: events})

	res, err := env.svc.Inspection.Create(ctx, worker, CreateInput{
		AssemblyCodes:  []string{"SA201", "SA202", "SA201"},
		InspectionType: "ARUP FINAL",
		RequestDate:    testDate,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.InsertedCount)
	assert.Empty(t, res.DuplicateItems)
	assert.Equal(t, "ARUP FINAL", res.Request.InspectionType)
	assert.Equal(t, string(lifecycle.Pending), res.Request.Status)
	assert.Equal(t, "PENDING", res.Request.StatusCode)
	assert.Equal(t, "kim", res.Request.RequestedBy)
	assert.ElementsMatch(t, []string{"SA201", "SA202"}, res.Request.AssemblyCodes)

	ev := <-events
	assert.Equal(t, "inspection_update", ev.EventType)
	assert.Contains(t, ev.Data, `"action":"submit"`)

	t.Run("duplicates are skipped", func(t *testing.T) {
		testutil.SeedAssembly(t, env.db, "SA204", "BEAM", 10, testDate, testDate)
		other := env.user(t, "lee", 1)

		res, err := env.svc.Inspection.Create(ctx, other, CreateInput{AssemblyCodes: []string{"SA201", "SA204"}, RequestDate: testDate})
		require.NoError(t, err)
		assert.Equal(t, 1, res.InsertedCount)
		assert.Equal(t, []string{"SA204"}, res.InsertedCodes)
		require.Len(t, res.DuplicateItems, 1)
		assert.Equal(t, "SA201", res.DuplicateItems[0].AssemblyCode)
		assert.Equal(t, "kim", res.DuplicateItems[0].ExistingRequester)
		assert.Equal(t, testDate, res.DuplicateItems[0].ExistingDate)
	})

	t.Run("all duplicates is a conflict", func(t *testing.T) {
		res, err := env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA201", "SA202"}, RequestDate: testDate})
		require.ErrorIs(t, err, apperr.ErrConflict)
		require.NotNil(t, res)
		assert.Len(t, res.DuplicateItems, 2)
		assert.Zero(t, res.InsertedCount)
	})

	t.Run("complete assemblies", func(t *testing.T) {
		testutil.SeedAssembly(t, env.db, "SA299", "BEAM", 10, testDate, testDate, testDate, testDate, testDate, testDate, testDate, testDate)
		_, err := env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"SA299"}, RequestDate: testDate})
		assert.Equal(t, apperr.KindAlreadyComplete, apperr.KindOf(err))
	})
}

func TestInspectionCreateConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.SeedAssembly(t, env.db, "SA301", "BEAM", 100, testDate)

	const workers = 5
	actors := make([]lifecycle.Actor, workers)
	for i := range actors {
		actors[i] = env.user(t, fmt.Sprintf("w%d", i), 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(actor lifecycle.Actor) {
			defer wg.Done()
			_, err := env.svc.Inspection.Create(ctx, actor, CreateInput{AssemblyCodes: []string{"SA301"}, RequestDate: testDate})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(actors[i])
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	var items int64
	require.NoError(t, env.db.Model(&entity.InspectionRequestItem{}).Where("assembly_code = ?", "SA301").Count(&items).Error)
	assert.Equal(t, int64(1), items)
}

func seedRequest(t *testing.T, env *testEnv, actor lifecycle.Actor, codes ...string) *entity.InspectionRequest {
	t.Helper()
	for _, c := range codes {
		testutil.SeedAssembly(t, env.db, c, "BEAM", 100, testDate)
	}
	res, err := env.svc.Inspection.Create(context.Background(), actor, CreateInput{AssemblyCodes: codes, RequestDate: testDate})
	require.NoError(t, err)
	return res.Request
}

func TestInspectionApproveConfirm(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	worker := env.user(t, "kim", 1)
	inspector := env.user(t, "park", 2)
	manager := env.user(t, "choi", 3)

	req := seedRequest(t, env, worker, "A-001", "A-002")
	assert.Equal(t, "FINAL", req.InspectionType)

	_, err := env.svc.Inspection.Approve(ctx, worker, req.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = env.svc.Inspection.Confirm(ctx, manager, req.ID, "2025-07-20")
	assert.ErrorIs(t, err, apperr.ErrState)

	approved, err := env.svc.Inspection.Approve(ctx, inspector, req.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Approved), approved.Status)
	assert.Equal(t, "park", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedDate)

	_, err = env.svc.Inspection.Confirm(ctx, inspector, req.ID, "2025-07-20")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = env.svc.Inspection.Confirm(ctx, manager, req.ID, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	confirmed, err := env.svc.Inspection.Confirm(ctx, manager, req.ID, "2025-07-20")
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Confirmed), confirmed.Status)
	assert.Equal(t, "2025-07-20", confirmed.ConfirmedDate)

	// 확정일이 조립품 FINAL 컬럼에 기록되어 다음 공정이 넘어간다
	view, err := env.svc.Assembly.Get(ctx, "A-001")
	require.NoError(t, err)
	require.NotNil(t, view.FinalDate)
	assert.Equal(t, "2025-07-20", *view.FinalDate)
	assert.Equal(t, "ARUP_FINAL", view.NextStage)

	_, err = env.svc.Inspection.Cancel(ctx, manager, req.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	logs, err := env.svc.Inspection.History(ctx, manager, req.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	actions := []string{logs[0].Action, logs[1].Action, logs[2].Action}
	assert.ElementsMatch(t, []string{"submit", "approve", "confirm"}, actions)
}

func TestInspectionReject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	worker := env.user(t, "kim", 1)
	inspector := env.user(t, "park", 2)

	req := seedRequest(t, env, worker, "B-001")

	rejected, err := env.svc.Inspection.Reject(ctx, inspector, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Rejected), rejected.Status)
	assert.Equal(t, lifecycle.DefaultRejectReason, rejected.RejectReason)

	_, err = env.svc.Inspection.Approve(ctx, inspector, req.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	// 거부된 건은 중복으로 보지 않는다
	res, err := env.svc.Inspection.Create(ctx, worker, CreateInput{AssemblyCodes: []string{"B-001"}, RequestDate: testDate})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsertedCount)
}

func TestInspectionCancel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	kim := env.user(t, "kim", 1)
	lee := env.user(t, "lee", 1)
	manager := env.user(t, "choi", 3)

	req := seedRequest(t, env, kim, "C-001")

	_, err := env.svc.Inspection.Cancel(ctx, lee, req.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	cancelled, err := env.svc.Inspection.Cancel(ctx, kim, req.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Cancelled), cancelled.Status)

	req2, err := env.svc.Inspection.Create(ctx, kim, CreateInput{AssemblyCodes: []string{"C-001"}, RequestDate: testDate})
	require.NoError(t, err)
	_, err = env.svc.Inspection.Cancel(ctx, manager, req2.Request.ID)
	assert.NoError(t, err)
}

func TestInspectionDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	kim := env.user(t, "kim", 1)
	inspector := env.user(t, "park", 2)
	manager := env.user(t, "choi", 3)

	req := seedRequest(t, env, kim, "D-001")

	assert.ErrorIs(t, env.svc.Inspection.Delete(ctx, inspector, req.ID), apperr.ErrAuthorization)
	require.NoError(t, env.svc.Inspection.Delete(ctx, manager, req.ID))

	_, err := env.svc.Inspection.Get(ctx, manager, req.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, env.svc.Inspection.Delete(ctx, manager, req.ID), apperr.ErrNotFound)

	var items int64
	env.db.Model(&entity.InspectionRequestItem{}).Where("request_id = ?", req.ID).Count(&items)
	assert.Zero(t, items)
}

func TestInspectionStaleTransition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	kim := env.user(t, "kim", 1)
	inspector := env.user(t, "park", 2)

	req := seedRequest(t, env, kim, "E-001")

	// 조회와 갱신 사이에 다른 요청이 먼저 처리한 경우
	require.NoError(t, env.db.Model(&entity.InspectionRequest{}).Where("id = ?", req.ID).Update("status", string(lifecycle.Approved)).Error)
	err := env.repos.Inspection.UpdateFromStatus(ctx, req.ID, lifecycle.Pending, map[string]interface{}{"status": string(lifecycle.Rejected)})
	assert.ErrorIs(t, err, repository.ErrStale)

	_, err = env.svc.Inspection.Reject(ctx, inspector, req.ID, "x")
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestInspectionListScope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	kim := env.user(t, "kim", 1)
	lee := env.user(t, "lee", 1)
	inspector := env.user(t, "park", 2)

	mine := seedRequest(t, env, kim, "F-001")
	seedRequest(t, env, lee, "F-002")
	done := seedRequest(t, env, kim, "F-003")
	_, err := env.svc.Inspection.Cancel(ctx, kim, done.ID)
	require.NoError(t, err)

	list, err := env.svc.Inspection.List(ctx, kim, repository.InspectionFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list.Requests, 1)
	assert.Equal(t, mine.ID, list.Requests[0].ID)
	assert.Equal(t, lifecycle.Level(1), list.UserLevel)

	all, err := env.svc.Inspection.List(ctx, inspector, repository.InspectionFilter{}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)

	pending, err := env.svc.Inspection.List(ctx, inspector, repository.InspectionFilter{Status: "pending"}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending.Total)

	byCode, err := env.svc.Inspection.List(ctx, inspector, repository.InspectionFilter{AssemblyCode: "F-002"}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byCode.Total)

	_, err = env.svc.Inspection.Get(ctx, lee, mine.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestInspectionExport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	kim := env.user(t, "kim", 1)
	manager := env.user(t, "choi", 3)
	seedRequest(t, env, kim, "G-002", "G-001")

	f, name, err := env.svc.Inspection.Export(ctx, manager, repository.InspectionFilter{})
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, name, ".xlsx")

	header, err := f.GetCellValue("검사신청", "B1")
	require.NoError(t, err)
	assert.Equal(t, "검사공정", header)

	codes, err := f.GetCellValue("검사신청", "G2")
	require.NoError(t, err)
	assert.Equal(t, "G-001, G-002", codes)
}
