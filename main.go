package main

import (
	"dealcrm/config"
	"dealcrm/controllers"
	"dealcrm/database"
	"dealcrm/middleware"
	"dealcrm/services"
	"dealcrm/utils"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
)

func initScheduler(db *database.Database, planService *services.PaymentPlanService, syncService *services.SyncService) {
	scheduler := services.NewSchedulerService(db.DB, planService, syncService)
	scheduler.Start()
	log.Println("Планировщик просрочки и синхронизации запущен")
}

// newAdminEngine собирает служебный сервер с проверкой здоровья и метриками
func newAdminEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	admin := gin.New()
	admin.Use(middleware.Recovery())
	admin.Use(middleware.Logger())
	admin.Use(middleware.RateLimit())
	admin.Use(middleware.CORSMiddleware())

	admin.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
	})

	return admin
}

// startAdminServer запускает служебный сервер в отдельной горутине
func startAdminServer(port int) {
	admin := newAdminEngine()
	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Printf("Служебный сервер запущен на порту %s", addr)
		if err := admin.Run(addr); err != nil {
			log.Fatalf("Ошибка запуска служебного сервера: %v", err)
		}
	}()
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}

	// Инициализируем сервисы
	notificationService := services.NewNotificationService(cfg)
	syncService := services.NewSyncService(db.DB)
	automationService := services.NewAutomationService(db.DB)
	ownershipService := services.NewOwnershipService(db.DB)
	receiptService := services.NewReceiptService(cfg.ReceiptHMACKey)

	dealService := services.NewDealService(db.DB, syncService, notificationService, automationService)
	planService := services.NewPaymentPlanService(db.DB, syncService, notificationService, receiptService, automationService)
	completionService := services.NewCompletionService(db.DB, syncService, ownershipService, notificationService, automationService)
	overdueService := services.NewOverdueService(db.DB)

	// Запускаем планировщик
	initScheduler(db, planService, syncService)

	// Запускаем служебный сервер
	startAdminServer(cfg.Server.AdminPort)

	// Создаем роутер
	router := mux.NewRouter()

	// Инициализируем контроллеры
	authController := controllers.NewAuthController(db, cfg)
	dealController := controllers.NewDealController(db, dealService, completionService)
	paymentController := controllers.NewPaymentController(db, planService, receiptService)
	overdueController := controllers.NewOverdueController(overdueService)

	// Публичные маршруты для аутентификации
	router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(authController.GetJWTKey())))
	protected.Use(middleware.LoggingMiddleware)

	// Маршруты для работы со сделками
	protected.HandleFunc("/deals", dealController.CreateDeal).Methods("POST")
	protected.HandleFunc("/deals", dealController.GetDeals).Methods("GET")
	protected.HandleFunc("/deals/{id}", dealController.GetDeal).Methods("GET")
	protected.HandleFunc("/deals/{id}/progress", dealController.ProgressStage).Methods("POST")
	protected.HandleFunc("/deals/{id}/hold", dealController.HoldDeal).Methods("POST")
	protected.HandleFunc("/deals/{id}/resume", dealController.ResumeDeal).Methods("POST")
	protected.HandleFunc("/deals/{id}/complete", dealController.CompleteDeal).Methods("POST")
	protected.HandleFunc("/deals/{id}/cancel", dealController.CancelDeal).Methods("POST")

	// Маршруты для работы с графиком платежей
	protected.HandleFunc("/deals/{id}/plan", paymentController.CreatePlan).Methods("POST")
	protected.HandleFunc("/deals/{id}/plan/summary", paymentController.GetPlanSummary).Methods("GET")
	protected.HandleFunc("/deals/{id}/payments", paymentController.RecordPayment).Methods("POST")
	protected.HandleFunc("/deals/{id}/payments/adhoc", paymentController.RecordAdHocPayment).Methods("POST")
	protected.HandleFunc("/deals/{id}/payments/{paymentId}/receipt", paymentController.GetReceipt).Methods("GET")
	protected.HandleFunc("/deals/{id}/installments", paymentController.AddInstallment).Methods("POST")
	protected.HandleFunc("/deals/{id}/installments/{installmentId}", paymentController.ModifyInstallment).Methods("PUT")
	protected.HandleFunc("/deals/{id}/installments/{installmentId}", paymentController.DeleteInstallment).Methods("DELETE")

	// Маршруты для работы с просрочкой
	protected.HandleFunc("/payments/overdue", overdueController.ListOverdue).Methods("GET")
	protected.HandleFunc("/payments/overdue/report", overdueController.GetReport).Methods("GET")
	protected.HandleFunc("/payments/overdue/mark", paymentController.MarkOverdue).Methods("POST")

	// Запускаем сервер
	port := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на порту %s", port)
	if err := http.ListenAndServe(port, router); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
