package interview

// SampleInterview returns prefilled setup data for trying the flow
// without writing a job description and CV by hand.
func SampleInterview() InterviewData {
	return InterviewData{
		JobDescription: `Vị trí: Senior React Engineer
Yêu cầu:
- 5+ năm kinh nghiệm với React, TypeScript.
- Hiểu sâu về Lifecycle, Hooks, Performance Optimization.
- Có kinh nghiệm với Tailwind CSS, State Management (Redux/Zustand).
- Khả năng làm việc độc lập, tiếng Anh tốt.
- Tư duy sản phẩm tốt.`,
		CandidateCV: `Nguyễn Văn A
Kinh nghiệm:
- 6 năm làm Frontend Developer.
- Chuyên gia ReactJS, NextJS.
- Đã từng lead team 5 người.
- Tiếng Anh giao tiếp trôi chảy (IELTS 7.0).
Kỹ năng: React, Node.js, AWS.`,
		CompanyCulture: "Chuyên nghiệp, sáng tạo, cởi mở.",
	}
}
