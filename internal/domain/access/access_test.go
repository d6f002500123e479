package access

import "testing"

// TestHasRole проверяет сравнение рангов ролей.
func TestHasRole(t *testing.T) {
	tests := []struct {
		name string
		have string
		need string
		want bool
	}{
		{"owner покрывает viewer", RoleOwner, RoleViewer, true},
		{"owner покрывает editor", RoleOwner, RoleEditor, true},
		{"owner покрывает owner", RoleOwner, RoleOwner, true},
		{"editor покрывает viewer", RoleEditor, RoleViewer, true},
		{"editor покрывает editor", RoleEditor, RoleEditor, true},
		{"editor не покрывает owner", RoleEditor, RoleOwner, false},
		{"viewer не покрывает editor", RoleViewer, RoleEditor, false},
		{"viewer покрывает viewer", RoleViewer, RoleViewer, true},
		{"неизвестная роль ничего не покрывает", "admin", RoleViewer, false},
		{"пустая роль ничего не покрывает", "", RoleViewer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasRole(tt.have, tt.need); got != tt.want {
				t.Errorf("HasRole(%q, %q) = %v, ожидается %v", tt.have, tt.need, got, tt.want)
			}
		})
	}
}

// TestRank проверяет фиксированные ранги ролей.
func TestRank(t *testing.T) {
	if Rank(RoleOwner) != 3 {
		t.Errorf("Rank(owner) = %d, ожидается 3", Rank(RoleOwner))
	}
	if Rank(RoleEditor) != 2 {
		t.Errorf("Rank(editor) = %d, ожидается 2", Rank(RoleEditor))
	}
	if Rank(RoleViewer) != 1 {
		t.Errorf("Rank(viewer) = %d, ожидается 1", Rank(RoleViewer))
	}
	if Rank("unknown") != 0 {
		t.Errorf("Rank(unknown) = %d, ожидается 0", Rank("unknown"))
	}
}

// TestIsValidRole проверяет список допустимых ролей.
func TestIsValidRole(t *testing.T) {
	for _, r := range []string{RoleOwner, RoleEditor, RoleViewer} {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false, ожидается true", r)
		}
	}
	for _, r := range []string{"", "admin", "Owner", "EDITOR"} {
		if IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = true, ожидается false", r)
		}
	}
}

// TestMaxRole проверяет выбор роли с большими привилегиями.
func TestMaxRole(t *testing.T) {
	if got := MaxRole(RoleViewer, RoleEditor); got != RoleEditor {
		t.Errorf("MaxRole(viewer, editor) = %q, ожидается editor", got)
	}
	if got := MaxRole(RoleOwner, RoleEditor); got != RoleOwner {
		t.Errorf("MaxRole(owner, editor) = %q, ожидается owner", got)
	}
	if got := MaxRole(RoleViewer, RoleViewer); got != RoleViewer {
		t.Errorf("MaxRole(viewer, viewer) = %q, ожидается viewer", got)
	}
}
