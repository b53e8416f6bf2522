package trace

import "testing"

func TestDefaultEnricher(t *testing.T) {
	tests := []struct {
		category, name string
		want           Tags
	}{
		{"JNIEnv", "FindClass", Tags{"JNIEnv", JniCall}},
		{"JNIEnv", "RegisterNatives", Tags{"JNIEnv", JniCall, Native}},
		{"JNIEnv", "ThrowNew", Tags{"JNIEnv", JniCall, Exception}},
		{"JavaVM", "GetEnv", Tags{"JavaVM", JavaVM}},
		{"libc", "malloc", Tags{Libc, Malloc}},
		{"libc", "strlen", Tags{Libc, String}},
		{"libc", "abort", Tags{Libc, Exit}},
		{"android", "__android_log_print", Tags{Android, Log}},
		{"android", "dlsym", Tags{Android, Dynload}},
		{"android", "android_dlopen_ext", Tags{Android, Dynload}},
	}
	for _, tt := range tests {
		e := NewEvent(0x1000, tt.category, tt.name, "")
		DefaultEnricher(e)
		if len(e.Tags) != len(tt.want) {
			t.Errorf("%s/%s: tags = %v, want %v", tt.category, tt.name, e.Tags, tt.want)
			continue
		}
		for i := range tt.want {
			if e.Tags[i] != tt.want[i] {
				t.Errorf("%s/%s: tags = %v, want %v", tt.category, tt.name, e.Tags, tt.want)
				break
			}
		}
	}
}

func TestTagsAddIsIdempotent(t *testing.T) {
	var tags Tags
	tags.Add(Malloc)
	tags.Add(Malloc)
	tags.Add(String)
	if len(tags) != 2 {
		t.Fatalf("tags = %v", tags)
	}
	if got := tags.Strings(); got[0] != "#malloc" || got[1] != "#string" {
		t.Errorf("Strings() = %v", got)
	}
	if tags.Primary() != Malloc {
		t.Errorf("Primary() = %q", tags.Primary())
	}
}

func TestAnnotate(t *testing.T) {
	e := &Event{Name: "dlsym"}
	e.Annotate("lib", "libc.so")
	if !e.Annotations.Has("lib") || e.Annotations.Get("lib") != "libc.so" {
		t.Errorf("annotations = %v", e.Annotations)
	}
	if e.PrimaryTag() != "" {
		t.Errorf("PrimaryTag() = %q, want empty", e.PrimaryTag())
	}
}
