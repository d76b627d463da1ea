package protocol

// Android keycodes understood by the phone.
const (
	KeycodeSoftLeft         = 1
	KeycodeSoftRight        = 2
	KeycodeHome             = 3
	KeycodeBack             = 4
	KeycodeCall             = 5
	KeycodeEndCall          = 6
	KeycodeDpadUp           = 19
	KeycodeDpadDown         = 20
	KeycodeDpadLeft         = 21
	KeycodeDpadRight        = 22
	KeycodeDpadCenter       = 23
	KeycodeN                = 42
	KeycodeTab              = 61
	KeycodeEnter            = 66
	KeycodeSearch           = 84
	KeycodeMediaPlayPause   = 85
	KeycodeMediaStop        = 86
	KeycodeMediaNext        = 87
	KeycodeMediaPrevious    = 88
	KeycodeMediaRewind      = 89
	KeycodeMediaFastForward = 90
	KeycodeMediaPlay        = 126
	KeycodeMediaPause       = 127
	KeycodeGuide            = 172
	KeycodeMusic            = 209
	KeycodeVoiceAssist      = 231
	KeycodeRotaryController = 65536
	KeycodeNavigation       = 65537
	KeycodeTelephone        = 65538
)

// SupportedKeycodes is the key list advertised on the input channel.
var SupportedKeycodes = []int32{
	KeycodeSoftLeft,
	KeycodeSoftRight,
	KeycodeHome,
	KeycodeBack,
	KeycodeCall,
	KeycodeEndCall,
	KeycodeDpadUp,
	KeycodeDpadDown,
	KeycodeDpadLeft,
	KeycodeDpadRight,
	KeycodeDpadCenter,
	KeycodeTab,
	KeycodeEnter,
	KeycodeSearch,
	KeycodeMediaPlayPause,
	KeycodeMediaNext,
	KeycodeMediaPrevious,
	KeycodeMediaPlay,
	KeycodeMediaPause,
	KeycodeMusic,
	KeycodeVoiceAssist,
	KeycodeRotaryController,
	KeycodeNavigation,
	KeycodeTelephone,
}
