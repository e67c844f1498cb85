package process

import "github.com/jimp5978/dshi-field-app/internal/ecs/apperr"

// CheckBatch 함께 검사신청할 조립품들의 공통 다음 공정을 구한다.
// 결과 공정이 검사신청의 inspection_type이 된다.
func CheckBatch(batch []Markers) (Stage, error) {
	if len(batch) == 0 {
		return "", apperr.Validation("검사신청할 항목을 선택해주세요")
	}

	first := Resolve(batch[0])
	for _, m := range batch[1:] {
		if Resolve(m) != first {
			return "", apperr.New(apperr.KindIncompatibleBatch, "같은 공정의 항목들만 함께 검사신청할 수 있습니다")
		}
	}
	if first.Complete {
		return "", apperr.New(apperr.KindAlreadyComplete, "선택한 항목들은 이미 모든 공정이 완료되었습니다")
	}
	return first.Next, nil
}
