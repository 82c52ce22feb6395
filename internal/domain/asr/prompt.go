package asr

import "strings"

// VietnameseVocabulary is the common-word list used to prime the recognizer.
var VietnameseVocabulary = []string{
	"xin chào", "cảm ơn", "vâng", "không", "được", "không được",
	"hôm nay", "ngày mai", "hôm qua", "bây giờ", "sau đó",
	"công ty", "dự án", "cuộc họp", "khách hàng", "đối tác",
	"việc làm", "nhiệm vụ", "mục tiêu", "kết quả", "giải pháp",
	"tốt", "tuyệt vời", "xuất sắc", "chấp nhận được", "cần cải thiện",
	"đúng", "sai", "chính xác", "rõ ràng", "hiểu",
	"vấn đề", "thách thức", "cơ hội", "rủi ro", "nguy cơ",
}

// EnglishVocabulary lists loanwords that show up in mixed-language speech.
var EnglishVocabulary = []string{
	"okay", "yes", "no", "thank you", "hello", "meeting",
	"project", "customer", "partner", "solution", "problem",
}

// VietnamesePrompt builds the priming text for Vietnamese recognition.
func VietnamesePrompt(includeEnglish bool) string {
	if includeEnglish {
		return "Đây là đoạn ghi âm tiếng Việt, có thể có một số từ tiếng Anh như: " +
			strings.Join(EnglishVocabulary[:5], ", ") +
			". Các từ tiếng Việt phổ biến: " +
			strings.Join(VietnameseVocabulary[:10], ", ")
	}
	return "Đây là đoạn ghi âm tiếng Việt. " + strings.Join(VietnameseVocabulary[:15], ", ")
}
