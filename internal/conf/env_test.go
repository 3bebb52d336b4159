package conf

import "testing"

func TestEnvValidators(t *testing.T) {
	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool true", validateEnvBool, "true", false},
		{"bool numeric", validateEnvBool, "1", false},
		{"bool garbage", validateEnvBool, "yes", true},
		{"positive int", validateEnvPositiveInt, "10", false},
		{"zero int", validateEnvPositiveInt, "0", true},
		{"unit interval", validateEnvUnitInterval, "0.75", false},
		{"unit interval too high", validateEnvUnitInterval, "1.5", true},
		{"latitude ok", validateEnvLatitude, "-7.74", false},
		{"latitude out of range", validateEnvLatitude, "95", true},
		{"longitude ok", validateEnvLongitude, "39.3", false},
		{"longitude out of range", validateEnvLongitude, "181", true},
		{"port ok", validateEnvPort, "8080", false},
		{"port out of range", validateEnvPort, "70000", true},
		{"port not a number", validateEnvPort, "http", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestEnvBindingsCoverKnownKeys(t *testing.T) {
	bindings := getEnvBindings()
	if len(bindings) == 0 {
		t.Fatal("expected env bindings to be defined")
	}
	for _, b := range bindings {
		if b.ConfigKey == "" || b.EnvVar == "" {
			t.Errorf("binding %+v has an empty key or variable name", b)
		}
	}
}
