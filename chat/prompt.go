package chat

import "strings"

// ContextPlaceholder is replaced by the context digest when the system
// prompt is rendered.
const ContextPlaceholder = "{{context}}"

// DefaultSystemPrompt primes a new conversation.
const DefaultSystemPrompt = `Bạn là trợ lý AI của website.

Nhiệm vụ của bạn:
- Tư vấn về sản phẩm và dịch vụ được giới thiệu trên website
- Trả lời bằng tiếng Việt, ngắn gọn, rõ ràng
- Không được vượt quá 200 từ mỗi câu trả lời

Nội dung website:
{{context}}

Nếu không tìm thấy thông tin, đề xuất liên hệ hotline hoặc fanpage.`

// RenderSystemPrompt substitutes digest into tmpl.
func RenderSystemPrompt(tmpl, digest string) string {
	return strings.ReplaceAll(tmpl, ContextPlaceholder, digest)
}
