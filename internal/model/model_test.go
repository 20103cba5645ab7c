package model

import "testing"

func TestQuestionValidate(t *testing.T) {
	n := func(v int) *int { return &v }
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"total_marks", Question{Question: "Q", TotalMarks: n(3)}, false},
		{"legacy mark", Question{Question: "Q", Mark: n(0)}, false},
		{"no marks", Question{Question: "Q"}, false},
		{"empty text", Question{Question: " \t", TotalMarks: n(1)}, true},
		{"negative total_marks", Question{Question: "Q", TotalMarks: n(-1)}, true},
		{"negative mark", Question{Question: "Q", Mark: n(-4)}, true},
		{"negative mark shadowed by total_marks", Question{Question: "Q", TotalMarks: n(2), Mark: n(-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.q.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
