package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLabeledBody(t *testing.T) {
	body := "안녕하세요.\n회사명: 테스트 회사\n담당자: 김철수\n연락처: 010-1234-5678\n발주 부탁드립니다."

	info := New().Extract("3월 발주서", body)
	assert.Equal(t, "테스트 회사", info.CompanyName)
	assert.Equal(t, "김철수", info.ContactName)
	assert.Equal(t, "010-1234-5678", info.Phone)
	assert.Contains(t, info.SuggestedActions, "register_company")
	assert.Contains(t, info.SuggestedActions, "notify_admin")
}

func TestExtractBracketedSubjectFallback(t *testing.T) {
	info := New().Extract("[한빛상사] 발주 요청", "수량은 첨부 참조")
	assert.Equal(t, "한빛상사", info.CompanyName)
}

func TestExtractNothing(t *testing.T) {
	info := New().Extract("발주", "내역 첨부")
	assert.Empty(t, info.CompanyName)
	assert.NotContains(t, info.SuggestedActions, "register_company")
	assert.Contains(t, info.SuggestedActions, "notify_admin")
}

func TestExtractEnglishLabels(t *testing.T) {
	info := New().Extract("PO request", "Company: Acme Trading\nContact: Jane Doe\nPhone: 02-555-0100")
	assert.Equal(t, "Acme Trading", info.CompanyName)
	assert.Equal(t, "Jane Doe", info.ContactName)
	assert.Equal(t, "02-555-0100", info.Phone)
}
